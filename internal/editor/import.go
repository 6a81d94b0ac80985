package editor

import (
	"errors"

	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/history"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/terrain"
)

// ErrImportBusy возвращается, если пакетный импорт уже выполняется
var ErrImportBusy = errors.New("пакетный импорт уже выполняется")

// importJob — нарезанный на инкременты пакетный импорт террейна.
// Один инкремент применяется за итерацию цикла (ProcessFrame), чтобы
// импорт не блокировал интерактивность. Вся работа помечена токеном
// поколения: очистка карты на лету делает оставшиеся инкременты
// недействительными.
type importJob struct {
	gen     uint64
	batches []terrain.TerrainMap
	next    int
	tx      *history.Transaction // импорт целиком — одна undo-транзакция
	total   int
}

// StartImport ставит пакетный импорт в очередь. Карта нарезается на
// батчи по sliceSize позиций; применение идёт по одному батчу за кадр.
func (s *Session) StartImport(m terrain.TerrainMap, sliceSize int) error {
	if len(m) == 0 {
		return errors.New("импорт пустой карты")
	}
	if sliceSize <= 0 {
		sliceSize = 512
	}

	batches := make([]terrain.TerrainMap, 0, len(m)/sliceSize+1)
	batch := make(terrain.TerrainMap, sliceSize)
	for pos, id := range m {
		batch[pos] = id
		if len(batch) >= sliceSize {
			batches = append(batches, batch)
			batch = make(terrain.TerrainMap, sliceSize)
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	job := &importJob{
		gen:     s.sctx.Generation(),
		batches: batches,
		tx:      history.NewTransaction(),
		total:   len(m),
	}

	// Проверка занятости и публикация под одним захватом мьютекса
	s.mu.Lock()
	if s.job != nil {
		s.mu.Unlock()
		return ErrImportBusy
	}
	s.job = job
	s.mu.Unlock()

	logging.Info("📥 Импорт начат: %d позиций, %d инкрементов", len(m), len(batches))
	return nil
}

// ImportActive сообщает, выполняется ли пакетный импорт
func (s *Session) ImportActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}

// stepImport применяет один инкремент импорта. Вызывается из ProcessFrame.
func (s *Session) stepImport(job *importJob) {
	if s.sctx.Generation() != job.gen {
		logging.Warn("Импорт отменён: карта очищена во время выполнения")
		s.mu.Lock()
		if s.job == job {
			s.job = nil
		}
		s.mu.Unlock()
		return
	}

	batch := job.batches[job.next]
	job.next++
	last := job.next == len(job.batches)

	// Перестройка мешей откладывается до последнего инкремента
	_, histRemoved := s.applyBatchResolved(batch, nil, terrain.UpdateOpts{
		Silent:       true,
		DeferMeshing: !last,
	})
	job.tx.RecordBatch(batch, histRemoved)

	if !last {
		return
	}

	s.mu.Lock()
	s.job = nil
	s.mu.Unlock()

	s.history.Push(job.tx)
	s.publish(eventbus.EventImportDone, map[string]interface{}{
		"positions": job.total,
	})
	logging.Info("✅ Импорт завершён: %d позиций", job.total)
}
