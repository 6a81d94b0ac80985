package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxel-editor/internal/vec"
)

func TestCollapseReplacements(t *testing.T) {
	p := vec.Vec3{X: 1, Y: 2, Z: 3}
	q := vec.Vec3{X: 4, Y: 5, Z: 6}

	added := TerrainMap{p: StoneBlockID}
	removed := TerrainMap{p: GrassBlockID, q: DirtBlockID}

	filtered := CollapseReplacements(added, removed)

	assert.NotContains(t, filtered, p, "Замещённая позиция должна уйти из removed")
	assert.Contains(t, filtered, q, "Чистое удаление должно сохраниться")
	assert.Len(t, removed, 2, "Исходная карта removed не должна меняться")
}

func TestPendingMergeReplacement(t *testing.T) {
	p := vec.Vec3{X: 0, Y: 0, Z: 0}
	pending := NewPendingChangeSet()

	// Один батч: замена grass -> stone
	pending.Merge(TerrainMap{p: StoneBlockID}, TerrainMap{p: GrassBlockID})

	assert.Equal(t, StoneBlockID, pending.Added[p], "Итоговая операция — запись нового значения")
	assert.NotContains(t, pending.Removed, p, "Ключ не может быть в обеих картах")
	assert.Equal(t, 1, pending.Len())
}

func TestPendingPlaceThenRemoveBeforeFlush(t *testing.T) {
	// Блок поставлен и снят между двумя flush'ами: итоговая операция —
	// удаление ключа из durable store (идемпотентное, если ключа там нет)
	p := vec.Vec3{X: 0, Y: 0, Z: 0}
	pending := NewPendingChangeSet()

	pending.Merge(TerrainMap{p: WaterBlockID}, nil)
	assert.Equal(t, WaterBlockID, pending.Added[p])

	pending.Merge(nil, TerrainMap{p: WaterBlockID})

	assert.NotContains(t, pending.Added, p, "Добавление должно схлопнуться")
	assert.Contains(t, pending.Removed, p, "Итоговая операция — удаление")
	assert.Equal(t, 1, pending.Len())
}

func TestPendingRemoveThenPlace(t *testing.T) {
	p := vec.Vec3{X: 7, Y: 0, Z: 7}
	pending := NewPendingChangeSet()

	pending.Merge(nil, TerrainMap{p: StoneBlockID})
	pending.Merge(TerrainMap{p: SandBlockID}, nil)

	assert.Equal(t, SandBlockID, pending.Added[p], "Побеждает последняя запись")
	assert.NotContains(t, pending.Removed, p)
}

func TestPendingIdempotentMerge(t *testing.T) {
	// Повторное применение того же батча не меняет набор
	p := vec.Vec3{X: 1, Y: 1, Z: 1}
	q := vec.Vec3{X: 2, Y: 2, Z: 2}
	added := TerrainMap{p: GrassBlockID}
	removed := TerrainMap{q: StoneBlockID}

	pending := NewPendingChangeSet()
	pending.Merge(added, removed)
	first := pending.Clone()

	pending.Merge(added, removed)

	assert.Equal(t, first.Added, pending.Added, "Merge должен быть идемпотентен")
	assert.Equal(t, first.Removed, pending.Removed, "Merge должен быть идемпотентен")
}

func TestPendingRestoreFailedNewerWins(t *testing.T) {
	p := vec.Vec3{X: 0, Y: 0, Z: 0}
	q := vec.Vec3{X: 1, Y: 0, Z: 0}

	// Снимок неудавшейся записи
	snapshot := NewPendingChangeSet()
	snapshot.Merge(TerrainMap{p: StoneBlockID, q: GrassBlockID}, nil)

	// Пока шла запись, пользователь перезаписал p
	pending := NewPendingChangeSet()
	pending.Merge(TerrainMap{p: DirtBlockID}, nil)

	pending.RestoreFailed(snapshot)

	assert.Equal(t, DirtBlockID, pending.Added[p], "Более новая запись имеет приоритет")
	assert.Equal(t, GrassBlockID, pending.Added[q], "Нетронутый ключ восстанавливается из снимка")
}

func TestPendingClear(t *testing.T) {
	pending := NewPendingChangeSet()
	pending.Merge(TerrainMap{{X: 1, Y: 1, Z: 1}: StoneBlockID}, nil)

	pending.Clear()

	assert.True(t, pending.IsEmpty())
	assert.Equal(t, 0, pending.Len())
}
