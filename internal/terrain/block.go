package terrain

import "github.com/annel0/voxel-editor/internal/vec"

// BlockID представляет идентификатор типа блока.
// 0 — пустота; отсутствие ключа в карте эквивалентно нулю.
type BlockID uint32

// Константы ID блоков
const (
	AirBlockID   BlockID = iota // 0
	StoneBlockID                // 1
	GrassBlockID                // 2
	WaterBlockID                // 3
	SandBlockID                 // 4
	DirtBlockID                 // 5

	// ID начиная с 1000 зарезервированы: 1000 — служебная метка следа
	// объекта окружения в пространственном индексе, с 1001 — производные
	// пользовательские типы блоков.
	CustomBlockBase BlockID = 1001
)

// TerrainMap отображает позицию вокселя в ID блока.
// Инвариант: ни одна хранимая запись не имеет значения 0.
type TerrainMap map[vec.Vec3]BlockID

// Clone создаёт глубокую копию карты
func (m TerrainMap) Clone() TerrainMap {
	out := make(TerrainMap, len(m))
	for pos, id := range m {
		out[pos] = id
	}
	return out
}

// CollapseReplacements применяет правило замещения к одному батчу:
// позиция, присутствующая и в added, и в removed, трактуется как
// чистая перезапись — остаётся только в added. Возвращает отфильтрованный
// removed; added не меняется.
func CollapseReplacements(added, removed TerrainMap) TerrainMap {
	if len(removed) == 0 || len(added) == 0 {
		return removed
	}

	filtered := make(TerrainMap, len(removed))
	for pos, prev := range removed {
		if _, replaced := added[pos]; replaced {
			continue
		}
		filtered[pos] = prev
	}
	return filtered
}
