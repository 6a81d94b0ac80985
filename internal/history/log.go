package history

import (
	"fmt"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/terrain"

	"github.com/annel0/voxel-editor/internal/instance"
)

// Applier применяет транзакцию к живому состоянию редактора.
// Реализуется сессией: replay идёт через тот же batched-путь, что и живые
// правки, поэтому меш и индекс остаются согласованными.
type Applier interface {
	ApplyTransaction(tx *Transaction) error
}

// Log — журнал undo/redo. Состояния: Idle -> Recording (открытый жест) ->
// Idle; каждый завершённый жест фиксирует одну транзакцию.
type Log struct {
	mu      sync.Mutex
	undo    []*Transaction
	redo    []*Transaction
	open    *Transaction // открытая транзакция жеста; nil в Idle
	applier Applier
	limit   int // максимальная глубина журнала
}

// NewLog создаёт журнал с указанной глубиной
func NewLog(applier Applier, limit int) *Log {
	if limit <= 0 {
		limit = 100
	}
	return &Log{
		applier: applier,
		limit:   limit,
	}
}

// Begin открывает жест (Recording). Повторный Begin внутри жеста логируется
// и игнорируется: жест продолжается.
func (l *Log) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open != nil {
		logging.Warn("UndoRedoLog: Begin при открытом жесте %s, жест продолжается", l.open.ID)
		return
	}
	l.open = NewTransaction()
}

// Recording сообщает, открыт ли жест
func (l *Log) Recording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open != nil
}

// RecordTerrain вливает батч правок террейна в открытый жест.
// Без открытого жеста батч оформляется одиночной транзакцией.
func (l *Log) RecordTerrain(added, removed terrain.TerrainMap) {
	l.mu.Lock()
	if l.open != nil {
		l.open.RecordBatch(added, removed)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	tx := NewTransaction()
	tx.RecordBatch(added, removed)
	l.Push(tx)
}

// RecordPlaced фиксирует размещение объекта окружения
func (l *Log) RecordPlaced(inst instance.EnvironmentInstance) {
	l.mu.Lock()
	if l.open != nil {
		l.open.RecordPlaced(inst)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	tx := NewTransaction()
	tx.RecordPlaced(inst)
	l.Push(tx)
}

// RecordRemoved фиксирует удаление объекта окружения
func (l *Log) RecordRemoved(inst instance.EnvironmentInstance) {
	l.mu.Lock()
	if l.open != nil {
		l.open.RecordRemoved(inst)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	tx := NewTransaction()
	tx.RecordRemoved(inst)
	l.Push(tx)
}

// Commit закрывает жест и помещает транзакцию в журнал.
// Пустой жест отбрасывается.
func (l *Log) Commit() {
	l.mu.Lock()
	tx := l.open
	l.open = nil
	l.mu.Unlock()

	if tx == nil || tx.IsEmpty() {
		return
	}
	l.Push(tx)
}

// Push добавляет транзакцию в undo-стек; redo-стек очищается —
// новое действие делает старую redo-историю недостижимой.
func (l *Log) Push(tx *Transaction) {
	if tx == nil || tx.IsEmpty() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.undo = append(l.undo, tx)
	if len(l.undo) > l.limit {
		l.undo = l.undo[1:]
	}
	l.redo = l.redo[:0]
}

// Undo снимает последнюю транзакцию, применяет её инверсию через общий
// batched-путь и перекладывает её в redo-стек. На пустом журнале — no-op.
func (l *Log) Undo() error {
	l.mu.Lock()
	if len(l.undo) == 0 {
		l.mu.Unlock()
		return nil
	}
	tx := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]
	l.mu.Unlock()

	if err := l.applier.ApplyTransaction(tx.Inverse()); err != nil {
		// Состояние не изменилось — возвращаем транзакцию на место
		l.mu.Lock()
		l.undo = append(l.undo, tx)
		l.mu.Unlock()
		return fmt.Errorf("undo транзакции %s: %w", tx.ID, err)
	}

	l.mu.Lock()
	l.redo = append(l.redo, tx)
	l.mu.Unlock()
	return nil
}

// Redo повторно применяет отменённую транзакцию. На пустом стеке — no-op.
func (l *Log) Redo() error {
	l.mu.Lock()
	if len(l.redo) == 0 {
		l.mu.Unlock()
		return nil
	}
	tx := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	l.mu.Unlock()

	if err := l.applier.ApplyTransaction(tx); err != nil {
		l.mu.Lock()
		l.redo = append(l.redo, tx)
		l.mu.Unlock()
		return fmt.Errorf("redo транзакции %s: %w", tx.ID, err)
	}

	l.mu.Lock()
	l.undo = append(l.undo, tx)
	l.mu.Unlock()
	return nil
}

// Clear опустошает оба стека и прерывает открытый жест.
// Сама очистка не попадает в журнал (не отменяема).
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.undo = nil
	l.redo = nil
	l.open = nil
}

// CanUndo сообщает, есть ли что отменять
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

// CanRedo сообщает, есть ли что повторять
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

// Depth возвращает глубины undo и redo стеков
func (l *Log) Depth() (undo, redo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo), len(l.redo)
}
