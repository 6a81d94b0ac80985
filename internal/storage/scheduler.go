package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
)

// PersistenceScheduler выполняет периодические и ручные батч-записи
// накопленных изменений в durable store. Flush'и не фенсируются:
// запись, перегнанная более новой, может гоняться — побеждает
// завершившаяся последней (допустимо при одном пишущем).
type PersistenceScheduler struct {
	store    *WorldStore
	tracker  *ChangeTracker
	interval time.Duration

	mu       sync.Mutex
	finalize func()                     // хук закрытия открытого жеста перед ручным flush
	onResult func(err error, opsCount int) // уведомление о результате flush
}

// NewPersistenceScheduler создаёт планировщик с указанным периодом автосохранения
func NewPersistenceScheduler(store *WorldStore, tracker *ChangeTracker, interval time.Duration) *PersistenceScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PersistenceScheduler{
		store:    store,
		tracker:  tracker,
		interval: interval,
	}
}

// SetFinalizeHook регистрирует хук, который перед ручным flush просит
// инструмент с открытой незакоммиченной правкой завершить её.
func (ps *PersistenceScheduler) SetFinalizeHook(fn func()) {
	ps.mu.Lock()
	ps.finalize = fn
	ps.mu.Unlock()
}

// SetResultListener регистрирует приёмник результатов flush
func (ps *PersistenceScheduler) SetResultListener(fn func(err error, opsCount int)) {
	ps.mu.Lock()
	ps.onResult = fn
	ps.mu.Unlock()
}

// Run запускает цикл автосохранения; блокирует до отмены контекста.
// Таймер срабатывает вхолостую, если несохранённых изменений нет.
func (ps *PersistenceScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !ps.tracker.HasPending() {
				continue
			}
			if err := ps.Flush(ctx); err != nil {
				logging.Error("Автосохранение не удалось: %v", err)
			}
		}
	}
}

// Flush снимает накопленные изменения, оптимистично очищает набор и пишет
// снимок суб-батчами. При ошибке записи снимок возвращается в набор —
// данные не теряются, ошибка отдаётся вызывающему.
func (ps *PersistenceScheduler) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := ps.tracker.TakeSnapshot()
	if snapshot.IsEmpty() {
		return nil
	}
	opsCount := snapshot.Len()

	if err := ps.store.ApplyTerrainBatch(snapshot); err != nil {
		ps.tracker.Restore(snapshot)
		ps.notify(err, opsCount)
		return fmt.Errorf("flush не удался, изменения возвращены в очередь: %w", err)
	}

	ps.tracker.MarkFlushed(time.Now())
	ps.notify(nil, opsCount)
	logging.Debug("Flush: записано %d операций террейна", opsCount)
	return nil
}

// FlushManual — ручное сохранение: сперва просит инструмент завершить
// открытую правку, затем выполняет обычный flush и дожидается его.
func (ps *PersistenceScheduler) FlushManual(ctx context.Context) error {
	ps.mu.Lock()
	finalize := ps.finalize
	ps.mu.Unlock()

	if finalize != nil {
		finalize()
	}
	return ps.Flush(ctx)
}

func (ps *PersistenceScheduler) notify(err error, opsCount int) {
	ps.mu.Lock()
	onResult := ps.onResult
	ps.mu.Unlock()

	if onResult != nil {
		onResult(err, opsCount)
	}
}
