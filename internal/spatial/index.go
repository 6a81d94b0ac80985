package spatial

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/terrain"
	"github.com/annel0/voxel-editor/internal/vec"
)

// FootprintSentinel — служебный ID, которым в индексе помечаются ячейки,
// занятые следом объекта окружения: «препятствие, но не настоящий блок».
const FootprintSentinel terrain.BlockID = 1000

// Occupant описывает занятую ячейку в результате запроса близости
type Occupant struct {
	Cell       vec.Vec3
	BlockID    terrain.BlockID
	DistanceSq float64
}

// Index — вторичный индекс занятых позиций (блоки террейна и следы
// объектов окружения) для запросов близости и проверок попадания.
// Не является источником истины: перестраивается из карты террейна.
type Index struct {
	mu       sync.RWMutex
	cellSize float64
	cells    map[vec.Vec3]terrain.BlockID
	ready    bool

	// Отложенный режим: во время активного жеста патчи буферизуются
	// и применяются разом на границе жеста.
	deferred      bool
	pendingAdd    terrain.TerrainMap
	pendingRemove terrain.TerrainMap

	onUpdated func(added, removed int) // уведомление вниз по конвейеру
}

// NewIndex создаёт индекс с указанным размером ячейки квантования
func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = 1.0 // По умолчанию ячейка — один воксель
	}

	return &Index{
		cellSize:      cellSize,
		cells:         make(map[vec.Vec3]terrain.BlockID),
		pendingAdd:    make(terrain.TerrainMap),
		pendingRemove: make(terrain.TerrainMap),
	}
}

// SetUpdateListener задаёт приёмник уведомлений об изменениях индекса.
// Вызовы с opts.Silent уведомление подавляют.
func (si *Index) SetUpdateListener(fn func(added, removed int)) {
	si.mu.Lock()
	si.onUpdated = fn
	si.mu.Unlock()
}

// Ready сообщает, был ли индекс инициализирован полной перестройкой
func (si *Index) Ready() bool {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.ready
}

// quantize переводит позицию вокселя в координаты ячейки индекса
func (si *Index) quantize(pos vec.Vec3) vec.Vec3 {
	if si.cellSize == 1.0 {
		return pos
	}
	return vec.Vec3{
		X: int(math.Floor(float64(pos.X) / si.cellSize)),
		Y: int(math.Floor(float64(pos.Y) / si.cellSize)),
		Z: int(math.Floor(float64(pos.Z) / si.cellSize)),
	}
}

// UpdateFromTerrain полностью перестраивает индекс из карты террейна.
// Ячейки следов объектов окружения при перестройке сохраняются.
func (si *Index) UpdateFromTerrain(m terrain.TerrainMap) {
	si.mu.Lock()
	defer si.mu.Unlock()

	fresh := make(map[vec.Vec3]terrain.BlockID, len(m))
	for cell, id := range si.cells {
		if id == FootprintSentinel {
			fresh[cell] = id
		}
	}
	for pos, id := range m {
		fresh[si.quantize(pos)] = id
	}

	si.cells = fresh
	si.ready = true
}

// UpdateBlocks применяет инкрементальный патч индекса.
// opts.Force обходит отложенный режим, opts.Silent подавляет уведомления.
// Вызов до инициализации логируется и игнорируется (не фатален).
func (si *Index) UpdateBlocks(added, removed terrain.TerrainMap, opts terrain.UpdateOpts) {
	si.mu.Lock()

	if !si.ready {
		si.mu.Unlock()
		logging.Warn("SpatialIndex: обновление до инициализации, патч пропущен (added=%d, removed=%d)",
			len(added), len(removed))
		return
	}

	if si.deferred && !opts.Force {
		// Буферизуем до границы жеста
		for pos, prev := range removed {
			if _, replaced := si.pendingAdd[pos]; replaced {
				delete(si.pendingAdd, pos)
			}
			si.pendingRemove[pos] = prev
		}
		for pos, id := range added {
			si.pendingAdd[pos] = id
			delete(si.pendingRemove, pos)
		}
		si.mu.Unlock()
		return
	}

	si.applyLocked(added, removed)
	onUpdated := si.onUpdated
	si.mu.Unlock()

	if !opts.Silent && onUpdated != nil {
		onUpdated(len(added), len(removed))
	}
}

// applyLocked применяет патч к ячейкам; вызывается под мьютексом
func (si *Index) applyLocked(added, removed terrain.TerrainMap) {
	for pos := range removed {
		cell := si.quantize(pos)
		// След объекта окружения блочным патчем не затирается
		if si.cells[cell] != FootprintSentinel {
			delete(si.cells, cell)
		}
	}
	for pos, id := range added {
		if id == 0 {
			continue
		}
		si.cells[si.quantize(pos)] = id
	}
}

// BeginDeferred включает отложенный режим на время активного жеста,
// чтобы ограничить покадровую стоимость во время drag-рисования.
func (si *Index) BeginDeferred() {
	si.mu.Lock()
	si.deferred = true
	si.mu.Unlock()
}

// FlushDeferred применяет накопленные патчи и выключает отложенный режим
func (si *Index) FlushDeferred() {
	si.mu.Lock()

	if !si.deferred {
		si.mu.Unlock()
		return
	}

	added, removed := si.pendingAdd, si.pendingRemove
	si.pendingAdd = make(terrain.TerrainMap)
	si.pendingRemove = make(terrain.TerrainMap)
	si.deferred = false

	si.applyLocked(added, removed)
	onUpdated := si.onUpdated
	si.mu.Unlock()

	if (len(added) > 0 || len(removed) > 0) && onUpdated != nil {
		onUpdated(len(added), len(removed))
	}
}

// InsertFootprint помечает ячейки, накрытые AABB объекта окружения.
// Ячейка с настоящим блоком не перезаписывается.
func (si *Index) InsertFootprint(min, max vec.Vec3Float) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if !si.ready {
		logging.Warn("SpatialIndex: вставка следа до инициализации пропущена")
		return
	}

	for _, cell := range si.cellsForBounds(min, max) {
		if _, occupied := si.cells[cell]; !occupied {
			si.cells[cell] = FootprintSentinel
		}
	}
}

// RemoveFootprint снимает пометку следа; ячейки настоящих блоков не трогаются
func (si *Index) RemoveFootprint(min, max vec.Vec3Float) {
	si.mu.Lock()
	defer si.mu.Unlock()

	for _, cell := range si.cellsForBounds(min, max) {
		if si.cells[cell] == FootprintSentinel {
			delete(si.cells, cell)
		}
	}
}

// HasOccupant сообщает, занята ли ячейка с указанными координатами вокселя
func (si *Index) HasOccupant(x, y, z int) bool {
	si.mu.RLock()
	defer si.mu.RUnlock()

	if !si.ready {
		return false
	}
	_, ok := si.cells[si.quantize(vec.Vec3{X: x, Y: y, Z: z})]
	return ok
}

// NearestOccupants возвращает занятые ячейки в радиусе maxDistance от origin,
// отсортированные по возрастанию расстояния.
func (si *Index) NearestOccupants(origin vec.Vec3Float, maxDistance float64) []Occupant {
	si.mu.RLock()
	defer si.mu.RUnlock()

	if !si.ready || maxDistance <= 0 {
		return nil
	}

	maxSq := maxDistance * maxDistance
	result := make([]Occupant, 0)

	min := vec.Vec3Float{X: origin.X - maxDistance, Y: origin.Y - maxDistance, Z: origin.Z - maxDistance}
	max := vec.Vec3Float{X: origin.X + maxDistance, Y: origin.Y + maxDistance, Z: origin.Z + maxDistance}
	candidates := si.cellsForBounds(min, max)

	// При большом радиусе дешевле пройтись по самим ячейкам
	if len(candidates) > len(si.cells) {
		for cell, id := range si.cells {
			if occ, ok := si.occupantWithin(cell, id, origin, maxSq); ok {
				result = append(result, occ)
			}
		}
	} else {
		for _, cell := range candidates {
			id, ok := si.cells[cell]
			if !ok {
				continue
			}
			if occ, ok := si.occupantWithin(cell, id, origin, maxSq); ok {
				result = append(result, occ)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].DistanceSq < result[j].DistanceSq })
	return result
}

// occupantWithin проверяет попадание центра ячейки в радиус
func (si *Index) occupantWithin(cell vec.Vec3, id terrain.BlockID, origin vec.Vec3Float, maxSq float64) (Occupant, bool) {
	center := vec.Vec3Float{
		X: (float64(cell.X) + 0.5) * si.cellSize,
		Y: (float64(cell.Y) + 0.5) * si.cellSize,
		Z: (float64(cell.Z) + 0.5) * si.cellSize,
	}
	distSq := center.DistanceSquaredTo(origin)
	if distSq > maxSq {
		return Occupant{}, false
	}
	return Occupant{Cell: cell, BlockID: id, DistanceSq: distSq}, true
}

// cellsForBounds возвращает ключи ячеек, пересекающихся с AABB
func (si *Index) cellsForBounds(min, max vec.Vec3Float) []vec.Vec3 {
	minX := int(math.Floor(min.X / si.cellSize))
	minY := int(math.Floor(min.Y / si.cellSize))
	minZ := int(math.Floor(min.Z / si.cellSize))
	maxX := int(math.Floor(max.X / si.cellSize))
	maxY := int(math.Floor(max.Y / si.cellSize))
	maxZ := int(math.Floor(max.Z / si.cellSize))

	cells := make([]vec.Vec3, 0, (maxX-minX+1)*(maxY-minY+1)*(maxZ-minZ+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				cells = append(cells, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return cells
}

// Clear опустошает индекс (новая карта); готовность сохраняется
func (si *Index) Clear() {
	si.mu.Lock()
	defer si.mu.Unlock()

	si.cells = make(map[vec.Vec3]terrain.BlockID)
	si.pendingAdd = make(terrain.TerrainMap)
	si.pendingRemove = make(terrain.TerrainMap)
	si.deferred = false
}

// CellCount возвращает количество занятых ячеек
func (si *Index) CellCount() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.cells)
}

// Stats возвращает сводку по индексу
func (si *Index) Stats() string {
	si.mu.RLock()
	defer si.mu.RUnlock()

	blocks := 0
	footprints := 0
	for _, id := range si.cells {
		if id == FootprintSentinel {
			footprints++
		} else {
			blocks++
		}
	}

	return fmt.Sprintf("SpatialIndex: %d ячеек (%d блоков, %d следов), cellSize=%.1f",
		len(si.cells), blocks, footprints, si.cellSize)
}
