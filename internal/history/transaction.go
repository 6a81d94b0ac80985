package history

import (
	"github.com/google/uuid"

	"github.com/annel0/voxel-editor/internal/instance"
	"github.com/annel0/voxel-editor/internal/terrain"
)

// Transaction — атомарная гетерогенная правка: блоки террейна и объекты
// окружения одного жеста. После помещения в журнал не изменяется.
//
// Прямое применение: batchUpdate(TerrainAdded, TerrainRemoved) + размещение
// EnvironmentAdded + удаление EnvironmentRemoved. Инверсия меняет пары
// местами и восстанавливает прежнее состояние.
type Transaction struct {
	ID             string
	TerrainAdded   terrain.TerrainMap // позиция -> итоговый ID в конце жеста
	TerrainRemoved terrain.TerrainMap // позиция -> ID на момент начала жеста

	EnvironmentAdded   []instance.EnvironmentInstance
	EnvironmentRemoved []instance.EnvironmentInstance
}

// NewTransaction создаёт пустую транзакцию
func NewTransaction() *Transaction {
	return &Transaction{
		ID:             uuid.NewString(),
		TerrainAdded:   make(terrain.TerrainMap),
		TerrainRemoved: make(terrain.TerrainMap),
	}
}

// IsEmpty сообщает, зафиксировала ли транзакция хоть одну правку
func (tx *Transaction) IsEmpty() bool {
	return len(tx.TerrainAdded) == 0 && len(tx.TerrainRemoved) == 0 &&
		len(tx.EnvironmentAdded) == 0 && len(tx.EnvironmentRemoved) == 0
}

// RecordBatch вливает батч правок террейна в открытую транзакцию.
// removed несёт значения на момент правки; для позиций, не тронутых ранее
// в этом жесте, это и есть значение начала жеста.
func (tx *Transaction) RecordBatch(added, removed terrain.TerrainMap) {
	for pos, prev := range removed {
		if _, placedInGesture := tx.TerrainAdded[pos]; placedInGesture {
			if _, hadOriginal := tx.TerrainRemoved[pos]; !hadOriginal {
				// Блок появился внутри жеста и внутри него же снят — чистый no-op
				delete(tx.TerrainAdded, pos)
				continue
			}
			// Заменён ранее в жесте; net-эффект жеста — удаление исходного
			delete(tx.TerrainAdded, pos)
			continue
		}
		if _, ok := tx.TerrainRemoved[pos]; !ok && prev != 0 {
			tx.TerrainRemoved[pos] = prev
		}
	}

	for pos, id := range added {
		if id == 0 {
			continue
		}
		tx.TerrainAdded[pos] = id
	}
}

// RecordPlaced фиксирует размещение объекта окружения
func (tx *Transaction) RecordPlaced(inst instance.EnvironmentInstance) {
	tx.EnvironmentAdded = append(tx.EnvironmentAdded, inst)
}

// RecordRemoved фиксирует удаление объекта окружения. Слот, размещённый
// ранее в этой же транзакции, схлопывается в no-op (зеркало правила
// замещения для блоков): иначе инверсия несла бы один (modelKey, id)
// в обоих списках и replay воскрешал бы несуществующий объект.
func (tx *Transaction) RecordRemoved(inst instance.EnvironmentInstance) {
	for i := range tx.EnvironmentAdded {
		placed := &tx.EnvironmentAdded[i]
		if placed.ModelKey == inst.ModelKey && placed.InstanceID == inst.InstanceID {
			tx.EnvironmentAdded = append(tx.EnvironmentAdded[:i], tx.EnvironmentAdded[i+1:]...)
			return
		}
	}
	tx.EnvironmentRemoved = append(tx.EnvironmentRemoved, inst)
}

// Inverse возвращает транзакцию-инверсию: пары added/removed поменяны местами
func (tx *Transaction) Inverse() *Transaction {
	return &Transaction{
		ID:                 tx.ID,
		TerrainAdded:       tx.TerrainRemoved,
		TerrainRemoved:     tx.TerrainAdded,
		EnvironmentAdded:   tx.EnvironmentRemoved,
		EnvironmentRemoved: tx.EnvironmentAdded,
	}
}
