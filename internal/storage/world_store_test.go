package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-editor/internal/instance"
	"github.com/annel0/voxel-editor/internal/terrain"
	"github.com/annel0/voxel-editor/internal/vec"
)

func setupTestStore(t *testing.T) (*WorldStore, string) {
	t.Helper()

	// Создаем временную директорию для тестов
	tempDir, err := os.MkdirTemp("", "world-store-test")
	if err != nil {
		t.Fatalf("Не удалось создать временную директорию: %v", err)
	}

	store, err := NewWorldStore(tempDir, 4) // маленький суб-батч, чтобы проверить нарезку
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Не удалось открыть хранилище: %v", err)
	}

	return store, tempDir
}

func cleanupTestStore(store *WorldStore, tempDir string) {
	if store != nil {
		store.Close()
	}
	if tempDir != "" {
		os.RemoveAll(tempDir)
	}
}

func TestTerrainBatchRoundTrip(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	pending := terrain.NewPendingChangeSet()
	added := make(terrain.TerrainMap)
	for i := 0; i < 10; i++ {
		added[vec.Vec3{X: i, Y: 0, Z: -i}] = terrain.StoneBlockID
	}
	pending.Merge(added, nil)

	require.NoError(t, store.ApplyTerrainBatch(pending))

	loaded, err := store.LoadTerrain()
	require.NoError(t, err)
	assert.Equal(t, added, loaded, "Снимок должен пережить round-trip поэлементно")
}

func TestTerrainDeleteIdempotent(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	p := vec.Vec3{X: 1, Y: 2, Z: 3}

	// Удаление ключа, которого в durable store никогда не было
	pending := terrain.NewPendingChangeSet()
	pending.Merge(nil, terrain.TerrainMap{p: terrain.GrassBlockID})

	require.NoError(t, store.ApplyTerrainBatch(pending), "Удаление отсутствующего ключа идемпотентно")

	loaded, err := store.LoadTerrain()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTerrainIncrementalUpdate(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	p := vec.Vec3{X: 0, Y: 0, Z: 0}
	q := vec.Vec3{X: 1, Y: 0, Z: 0}

	first := terrain.NewPendingChangeSet()
	first.Merge(terrain.TerrainMap{p: terrain.StoneBlockID, q: terrain.GrassBlockID}, nil)
	require.NoError(t, store.ApplyTerrainBatch(first))

	// Второй flush: p перезаписан, q удалён
	second := terrain.NewPendingChangeSet()
	second.Merge(terrain.TerrainMap{p: terrain.SandBlockID}, terrain.TerrainMap{q: terrain.GrassBlockID})
	require.NoError(t, store.ApplyTerrainBatch(second))

	loaded, err := store.LoadTerrain()
	require.NoError(t, err)
	assert.Equal(t, terrain.TerrainMap{p: terrain.SandBlockID}, loaded)
}

func TestEnvironmentRoundTrip(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	// Отсутствующий снимок — пустой список без ошибки
	loaded, err := store.LoadEnvironment()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	list := []instance.EnvironmentInstance{
		{ModelKey: "tree", InstanceID: 0, Transform: instance.Transform{
			Position: vec.Vec3Float{X: 1.5, Y: 0, Z: 2.5},
			Scale:    vec.Vec3Float{X: 1, Y: 2, Z: 1},
		}},
		{ModelKey: "tree", InstanceID: 3, Transform: instance.Transform{
			Scale: vec.Vec3Float{X: 1, Y: 1, Z: 1},
		}},
	}
	require.NoError(t, store.SaveEnvironment(list))

	loaded, err = store.LoadEnvironment()
	require.NoError(t, err)
	assert.Equal(t, list, loaded)
}

func TestCustomBlocksRoundTrip(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	loaded, err := store.LoadCustomBlocks()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	list := []terrain.CustomBlockType{
		{ID: 1001, Name: "мох", BaseID: terrain.GrassBlockID, Tint: 0x2F4F2F},
	}
	require.NoError(t, store.SaveCustomBlocks(list))

	loaded, err = store.LoadCustomBlocks()
	require.NoError(t, err)
	assert.Equal(t, list, loaded)
}

func TestClearAll(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(store, tempDir)

	pending := terrain.NewPendingChangeSet()
	pending.Merge(terrain.TerrainMap{{X: 1, Y: 1, Z: 1}: terrain.StoneBlockID}, nil)
	require.NoError(t, store.ApplyTerrainBatch(pending))
	require.NoError(t, store.SaveEnvironment([]instance.EnvironmentInstance{{ModelKey: "tree"}}))

	require.NoError(t, store.ClearAll())

	loadedTerrain, err := store.LoadTerrain()
	require.NoError(t, err)
	assert.Empty(t, loadedTerrain)

	loadedEnv, err := store.LoadEnvironment()
	require.NoError(t, err)
	assert.Nil(t, loadedEnv)
}

func TestStoreNotReadyAfterClose(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer os.RemoveAll(tempDir)

	require.NoError(t, store.Close())

	_, err := store.LoadTerrain()
	assert.ErrorIs(t, err, ErrStoreNotReady)

	pending := terrain.NewPendingChangeSet()
	pending.Merge(terrain.TerrainMap{{X: 0, Y: 0, Z: 0}: terrain.StoneBlockID}, nil)
	assert.ErrorIs(t, store.ApplyTerrainBatch(pending), ErrStoreNotReady)

	assert.NoError(t, store.Close(), "Повторный Close безопасен")
}

func TestPersistRestartRoundTrip(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer os.RemoveAll(tempDir)

	p := vec.Vec3{X: -4, Y: 7, Z: 100}
	pending := terrain.NewPendingChangeSet()
	pending.Merge(terrain.TerrainMap{p: terrain.WaterBlockID}, nil)
	require.NoError(t, store.ApplyTerrainBatch(pending))
	require.NoError(t, store.Close())

	// «Перезапуск»: то же хранилище открывается заново
	reopened, err := NewWorldStore(tempDir, 4)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadTerrain()
	require.NoError(t, err)
	assert.Equal(t, terrain.WaterBlockID, loaded[p])
}
