package editor

import (
	"github.com/annel0/voxel-editor/internal/terrain"
)

// ChunkSize — размер региона меш-системы в вокселях по каждой оси
const ChunkSize = 16

// ChunkMeshSystem — внешняя меш-система: группирует воксели в регионы
// фиксированного размера и асинхронно строит геометрию. Сессия только
// передаёт ей батчи; сами меши вне области этого слоя.
type ChunkMeshSystem interface {
	// UpdateTerrainChunks принимает батч изменений; deferMeshing
	// откладывает перестройку затронутых регионов (пакетный импорт)
	UpdateTerrainChunks(added, removed terrain.TerrainMap, deferMeshing bool)

	// RebuildChunks строит все регионы заново из полной карты
	RebuildChunks(full terrain.TerrainMap)

	// ClearChunks сбрасывает всю геометрию (новая карта)
	ClearChunks()

	// ProcessRenderQueue продвигает очередь отложенных перестроек;
	// вызывается раз в итерацию интерактивного цикла
	ProcessRenderQueue()

	// SetViewDistance задаёт дистанцию отрисовки в регионах
	SetViewDistance(n int)
}
