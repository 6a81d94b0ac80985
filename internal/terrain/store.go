package terrain

import (
	"sync"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/vec"
)

// UpdateOpts управляет распространением batch-обновления по подписчикам
type UpdateOpts struct {
	Force        bool // обойти отложенный режим пространственного индекса
	Silent       bool // подавить уведомления вниз по конвейеру (пакетные вызовы)
	DeferMeshing bool // отложить перестройку меша (пакетный импорт)
}

// ChunkSink получает батчи изменений для перестройки геометрии регионов.
// Реализуется внешней меш-системой.
type ChunkSink interface {
	UpdateTerrainChunks(added, removed TerrainMap, deferMeshing bool)
}

// IndexSink получает батчи изменений для вторичного индекса занятости
type IndexSink interface {
	UpdateBlocks(added, removed TerrainMap, opts UpdateOpts)
}

// Store — авторитетная разреженная карта блоков, единственный источник
// истины для всех инструментов редактора.
type Store struct {
	mu     sync.RWMutex
	blocks TerrainMap

	chunks ChunkSink
	index  IndexSink
}

// NewStore создаёт пустое хранилище террейна
func NewStore() *Store {
	return &Store{
		blocks: make(TerrainMap),
	}
}

// AttachChunkSink подключает меш-систему
func (s *Store) AttachChunkSink(sink ChunkSink) {
	s.mu.Lock()
	s.chunks = sink
	s.mu.Unlock()
}

// AttachIndexSink подключает пространственный индекс
func (s *Store) AttachIndexSink(sink IndexSink) {
	s.mu.Lock()
	s.index = sink
	s.mu.Unlock()
}

// Get возвращает ID блока в позиции (0 — пусто)
func (s *Store) Get(pos vec.Vec3) BlockID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks[pos]
}

// Set выполняет upsert блока; id == 0 удаляет запись. O(1).
func (s *Store) Set(pos vec.Vec3, id BlockID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 {
		delete(s.blocks, pos)
		return
	}
	s.blocks[pos] = id
}

// Len возвращает количество занятых позиций
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// BatchUpdate атомарно применяет обе карты в памяти и рассылает батч
// подписчикам (меш-система, пространственный индекс). Позиции,
// присутствующие в обеих картах, трактуются как перезапись — остаются
// только в added. Возвращает количество реально изменённых позиций.
func (s *Store) BatchUpdate(added, removed TerrainMap, opts UpdateOpts) int {
	removed = CollapseReplacements(added, removed)

	s.mu.Lock()
	mutated := 0
	for pos := range removed {
		if _, ok := s.blocks[pos]; ok {
			delete(s.blocks, pos)
			mutated++
		}
	}
	for pos, id := range added {
		if id == 0 {
			continue
		}
		if cur, ok := s.blocks[pos]; !ok || cur != id {
			s.blocks[pos] = id
			mutated++
		}
	}
	chunks := s.chunks
	index := s.index
	s.mu.Unlock()

	// Отсутствующий коллаборатор не фатален для пути правок
	if chunks != nil {
		chunks.UpdateTerrainChunks(added, removed, opts.DeferMeshing)
	} else {
		logging.Warn("BatchUpdate: меш-система не подключена, перестройка чанков пропущена")
	}

	if index != nil {
		index.UpdateBlocks(added, removed, opts)
	} else {
		logging.Warn("BatchUpdate: пространственный индекс не подключён, обновление пропущено")
	}

	return mutated
}

// Snapshot возвращает ссылку на текущую карту за O(1).
// Вызывающий не должен полагаться на её неизменность после
// последующих мутаций; для устойчивой копии используйте Clone.
func (s *Store) Snapshot() TerrainMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks
}

// Replace целиком подменяет карту (загрузка мира, очистка)
func (s *Store) Replace(m TerrainMap) {
	if m == nil {
		m = make(TerrainMap)
	}
	s.mu.Lock()
	s.blocks = m
	s.mu.Unlock()
}
