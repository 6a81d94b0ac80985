package storage

import (
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/terrain"
)

// ChangeTracker накапливает несохранённые изменения террейна.
// Базовая линия: pending — дельта с момента последнего УСПЕШНОГО flush
// (не с момента загрузки мира).
type ChangeTracker struct {
	mu        sync.Mutex
	pending   *terrain.PendingChangeSet
	lastFlush time.Time
}

// NewChangeTracker создаёт трекер с пустым набором изменений
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		pending: terrain.NewPendingChangeSet(),
	}
}

// Record вливает батч правок с применением правила замещения.
// Синхронной записи в durable store не происходит.
func (ct *ChangeTracker) Record(added, removed terrain.TerrainMap) {
	ct.mu.Lock()
	ct.pending.Merge(added, removed)
	ct.mu.Unlock()
}

// HasPending сообщает о наличии несохранённых изменений
func (ct *ChangeTracker) HasPending() bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return !ct.pending.IsEmpty()
}

// PendingCount возвращает количество отложенных операций
func (ct *ChangeTracker) PendingCount() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.pending.Len()
}

// PendingView возвращает копию текущего набора (диагностика, тесты)
func (ct *ChangeTracker) PendingView() *terrain.PendingChangeSet {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.pending.Clone()
}

// TakeSnapshot оптимистично забирает накопленные изменения:
// возвращает снимок и очищает набор. Правки, пришедшие во время записи,
// копятся уже в новом наборе.
func (ct *ChangeTracker) TakeSnapshot() *terrain.PendingChangeSet {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	snap := ct.pending
	ct.pending = terrain.NewPendingChangeSet()
	return snap
}

// Restore возвращает снимок неудавшейся записи в набор.
// Записи, появившиеся после снятия снимка, новее и имеют приоритет.
func (ct *ChangeTracker) Restore(snapshot *terrain.PendingChangeSet) {
	ct.mu.Lock()
	ct.pending.RestoreFailed(snapshot)
	ct.mu.Unlock()
}

// MarkFlushed фиксирует время последнего успешного flush
func (ct *ChangeTracker) MarkFlushed(t time.Time) {
	ct.mu.Lock()
	ct.lastFlush = t
	ct.mu.Unlock()
}

// LastFlush возвращает время последнего успешного flush
func (ct *ChangeTracker) LastFlush() time.Time {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.lastFlush
}

// Reset полностью сбрасывает трекер (новая карта, загрузка мира)
func (ct *ChangeTracker) Reset() {
	ct.mu.Lock()
	ct.pending = terrain.NewPendingChangeSet()
	ct.mu.Unlock()
}
