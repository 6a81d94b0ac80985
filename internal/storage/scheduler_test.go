package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-editor/internal/terrain"
	"github.com/annel0/voxel-editor/internal/vec"
)

func TestTrackerSnapshotOptimistic(t *testing.T) {
	tracker := NewChangeTracker()
	p := vec.Vec3{X: 0, Y: 0, Z: 0}
	q := vec.Vec3{X: 1, Y: 0, Z: 0}

	tracker.Record(terrain.TerrainMap{p: terrain.StoneBlockID}, nil)
	require.True(t, tracker.HasPending())

	snap := tracker.TakeSnapshot()
	assert.False(t, tracker.HasPending(), "Снимок оптимистично очищает набор")
	assert.Equal(t, 1, snap.Len())

	// Правка во время «записи» копится в новом наборе
	tracker.Record(terrain.TerrainMap{q: terrain.GrassBlockID}, nil)
	assert.Equal(t, 1, tracker.PendingCount())
}

func TestTrackerRestoreNewerWins(t *testing.T) {
	tracker := NewChangeTracker()
	p := vec.Vec3{X: 0, Y: 0, Z: 0}

	tracker.Record(terrain.TerrainMap{p: terrain.StoneBlockID}, nil)
	snap := tracker.TakeSnapshot()

	// Пока запись «шла», пользователь перезаписал ту же позицию
	tracker.Record(terrain.TerrainMap{p: terrain.SandBlockID}, nil)

	tracker.Restore(snap)

	view := tracker.PendingView()
	assert.Equal(t, terrain.SandBlockID, view.Added[p], "Более новая правка не затирается снимком")
}

func TestSchedulerFlushWritesPending(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	tracker := NewChangeTracker()
	scheduler := NewPersistenceScheduler(store, tracker, time.Minute)

	p := vec.Vec3{X: 5, Y: 5, Z: 5}
	tracker.Record(terrain.TerrainMap{p: terrain.DirtBlockID}, nil)

	var gotErr error
	var gotOps int
	scheduler.SetResultListener(func(err error, ops int) {
		gotErr = err
		gotOps = ops
	})

	require.NoError(t, scheduler.Flush(context.Background()))

	assert.False(t, tracker.HasPending())
	assert.False(t, tracker.LastFlush().IsZero())
	assert.NoError(t, gotErr)
	assert.Equal(t, 1, gotOps)

	loaded, err := store.LoadTerrain()
	require.NoError(t, err)
	assert.Equal(t, terrain.DirtBlockID, loaded[p])
}

func TestSchedulerFlushEmptyIsNoOp(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	tracker := NewChangeTracker()
	scheduler := NewPersistenceScheduler(store, tracker, time.Minute)

	notified := false
	scheduler.SetResultListener(func(error, int) { notified = true })

	require.NoError(t, scheduler.Flush(context.Background()))
	assert.False(t, notified, "Пустой набор не порождает записи и уведомлений")
}

func TestSchedulerFlushFailureRestoresPending(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer os.RemoveAll(tempDir)

	tracker := NewChangeTracker()
	scheduler := NewPersistenceScheduler(store, tracker, time.Minute)

	p := vec.Vec3{X: 0, Y: 0, Z: 0}
	tracker.Record(terrain.TerrainMap{p: terrain.StoneBlockID}, nil)

	// Провоцируем отказ записи
	require.NoError(t, store.Close())

	err := scheduler.Flush(context.Background())
	assert.Error(t, err)
	assert.True(t, tracker.HasPending(), "Несохранённые изменения не теряются при отказе записи")
	assert.True(t, tracker.LastFlush().IsZero())

	view := tracker.PendingView()
	assert.Equal(t, terrain.StoneBlockID, view.Added[p])
}

func TestSchedulerFlushManualFinalizesFirst(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	tracker := NewChangeTracker()
	scheduler := NewPersistenceScheduler(store, tracker, time.Minute)

	p := vec.Vec3{X: 1, Y: 1, Z: 1}

	// Открытая правка инструмента коммитится хуком до flush'а
	scheduler.SetFinalizeHook(func() {
		tracker.Record(terrain.TerrainMap{p: terrain.GrassBlockID}, nil)
	})

	require.NoError(t, scheduler.FlushManual(context.Background()))

	loaded, err := store.LoadTerrain()
	require.NoError(t, err)
	assert.Equal(t, terrain.GrassBlockID, loaded[p], "Правка из хука должна попасть в тот же flush")
}

func TestSchedulerRunRespectsContext(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	tracker := NewChangeTracker()
	scheduler := NewPersistenceScheduler(store, tracker, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	tracker.Record(terrain.TerrainMap{{X: 0, Y: 0, Z: 0}: terrain.StoneBlockID}, nil)

	// Дожидаемся автосохранения
	deadline := time.After(2 * time.Second)
	for tracker.HasPending() {
		select {
		case <-deadline:
			t.Fatal("Автосохранение не сработало за отведённое время")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}
