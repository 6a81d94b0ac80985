package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/config"
	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/history"
	"github.com/annel0/voxel-editor/internal/instance"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/spatial"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/terrain"
	"github.com/annel0/voxel-editor/internal/vec"
)

// ErrMapClearing возвращается для правок, пришедших во время очистки карты
var ErrMapClearing = errors.New("идёт очистка карты, операция отклонена")

// Session — фасад состояния редактора: владеет картой террейна,
// пространственным индексом, движком инстансов, трекером изменений и
// журналом undo/redo, координируя их согласованность. Все мутации приходят
// с одного логического потока (интерактивного цикла); фоновые горутины
// (автосохранение) работают через мьютексы коллабораторов.
type Session struct {
	sctx      *SessionContext
	terrain   *terrain.Store
	registry  *terrain.CustomBlockRegistry
	index     *spatial.Index
	instances *instance.Engine
	tracker   *storage.ChangeTracker
	scheduler *storage.PersistenceScheduler
	store     *storage.WorldStore
	history   *history.Log
	mesh      ChunkMeshSystem
	bus       eventbus.Bus
	metrics   *Metrics

	mu              sync.Mutex
	applyingHistory bool // replay undo/redo не пишет в журнал
	job             *importJob
	lastCamera      vec.Vec3Float
	finalizeEdit    func() // хук инструмента с открытой незакоммиченной правкой
}

// NewSession собирает сессию редактора и сшивает коллабораторов.
// mesh, bus и metrics могут быть nil: отсутствующий коллаборатор
// деградирует в warn + no-op, не ломая путь правок.
func NewSession(cfg *config.Config, store *storage.WorldStore, mesh ChunkMeshSystem, bus eventbus.Bus, metrics *Metrics) *Session {
	if cfg == nil {
		cfg = &config.Config{}
	}

	s := &Session{
		sctx:      NewSessionContext(),
		terrain:   terrain.NewStore(),
		registry:  terrain.NewCustomBlockRegistry(),
		index:     spatial.NewIndex(cfg.Editor.GetSpatialCellSize()),
		tracker:   storage.NewChangeTracker(),
		store:     store,
		mesh:      mesh,
		bus:       bus,
		metrics:   metrics,
	}

	s.instances = instance.NewEngine(instance.Options{
		Capacity:     cfg.Editor.GetMaxEnvironmentObjects(),
		ViewDistance: cfg.Editor.GetViewDistance(),
		CullInterval: time.Duration(cfg.Editor.GetCullIntervalMs()) * time.Millisecond,
		GraceWindow:  time.Duration(cfg.Editor.GetPlacementGraceMs()) * time.Millisecond,
	})

	s.history = history.NewLog(s, 100)

	s.scheduler = storage.NewPersistenceScheduler(
		store, s.tracker,
		time.Duration(cfg.Persistence.GetAutoFlushSeconds())*time.Second,
	)
	s.scheduler.SetFinalizeHook(func() {
		s.mu.Lock()
		finalize := s.finalizeEdit
		s.mu.Unlock()
		if finalize != nil {
			finalize()
		}
		s.EndGesture()
	})
	s.scheduler.SetResultListener(func(err error, opsCount int) {
		if err != nil {
			if s.metrics != nil {
				s.metrics.flushFailures.Inc()
			}
			s.publish(eventbus.EventFlushFailed, map[string]interface{}{"error": err.Error()})
			return
		}
		if s.metrics != nil {
			s.metrics.flushOps.Add(float64(opsCount))
		}
		s.publish(eventbus.EventFlushOK, map[string]interface{}{"ops": opsCount})
	})

	if mesh != nil {
		s.terrain.AttachChunkSink(mesh)
	}
	s.SetViewDistance(cfg.Editor.GetViewDistance())
	s.terrain.AttachIndexSink(s.index)
	s.index.SetUpdateListener(func(added, removed int) {
		s.publish(eventbus.EventSpatialUpdated, map[string]interface{}{
			"added": added, "removed": removed,
		})
	})

	return s
}

// publish отправляет уведомление в шину, если она подключена
func (s *Session) publish(eventType string, payload map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventbus.NewEnvelope(eventType, payload))
	}
}

// replaying сообщает, идёт ли replay транзакции журнала
func (s *Session) replaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyingHistory
}

// applyBatchResolved — общий batched-путь всех правок террейна: живых,
// импортных и replay undo/redo. Разрешает фактические прежние значения
// (для журнала и трекера), применяет батч к карте с форвардингом в меш и
// индекс, записывает дельту в трекер. Возвращает количество изменённых
// позиций и карту прежних значений.
func (s *Session) applyBatchResolved(added, removed terrain.TerrainMap, opts terrain.UpdateOpts) (int, terrain.TerrainMap) {
	deletions := make(terrain.TerrainMap, len(removed))
	histRemoved := make(terrain.TerrainMap, len(removed))

	for pos := range removed {
		if prev := s.terrain.Get(pos); prev != 0 {
			deletions[pos] = prev
			histRemoved[pos] = prev
		}
	}
	for pos, id := range added {
		if prev := s.terrain.Get(pos); prev != 0 && prev != id {
			histRemoved[pos] = prev
		}
	}

	mutated := s.terrain.BatchUpdate(added, deletions, opts)
	s.tracker.Record(added, histRemoved)

	if s.metrics != nil {
		s.metrics.blocksUpdated.Add(float64(mutated))
		s.metrics.pendingOps.Set(float64(s.tracker.PendingCount()))
	}
	if !opts.Silent {
		s.publish(eventbus.EventTerrainUpdated, map[string]interface{}{
			"added": len(added), "removed": len(removed), "mutated": mutated,
		})
	}

	return mutated, histRemoved
}

// UpdateTerrainBlocks применяет батч правок террейна от инструмента.
// removed достаточно передавать множеством позиций: фактические прежние
// значения сессия разрешает сама.
func (s *Session) UpdateTerrainBlocks(added, removed terrain.TerrainMap, opts terrain.UpdateOpts) int {
	if s.sctx.Clearing() {
		logging.Warn("UpdateTerrainBlocks во время очистки карты, батч отклонён")
		return 0
	}

	mutated, histRemoved := s.applyBatchResolved(added, removed, opts)
	if !s.replaying() {
		s.history.RecordTerrain(added, histRemoved)
	}
	return mutated
}

// FastUpdateBlock — низколатентный путь одного блока для drag-правок
func (s *Session) FastUpdateBlock(pos vec.Vec3, id terrain.BlockID) int {
	added := make(terrain.TerrainMap, 1)
	removed := make(terrain.TerrainMap, 1)
	if id == 0 {
		removed[pos] = 0
	} else {
		added[pos] = id
	}
	return s.UpdateTerrainBlocks(added, removed, terrain.UpdateOpts{Silent: true})
}

// BeginGesture открывает жест: правки до EndGesture сольются в одну
// undo-транзакцию, а пространственный индекс перейдёт в отложенный режим.
func (s *Session) BeginGesture() {
	s.history.Begin()
	s.index.BeginDeferred()
}

// EndGesture закрывает жест: коммит транзакции и применение накопленных
// патчей индекса.
func (s *Session) EndGesture() {
	s.history.Commit()
	s.index.FlushDeferred()
}

// PlaceEnvironment размещает объект окружения. Превышение лимита —
// ошибка пользователю, состояние не меняется.
func (s *Session) PlaceEnvironment(modelKey string, tr instance.Transform, saveUndo bool) (*instance.EnvironmentInstance, error) {
	if s.sctx.Clearing() {
		return nil, ErrMapClearing
	}

	inst, err := s.instances.PlaceInstance(modelKey, tr, -1)
	if err != nil {
		return nil, fmt.Errorf("размещение %s: %w", modelKey, err)
	}

	min, max := inst.FootprintBounds()
	s.index.InsertFootprint(min, max)

	if saveUndo && !s.replaying() {
		s.history.RecordPlaced(*inst)
	}
	if s.metrics != nil {
		s.metrics.instancesPlaced.Inc()
	}
	s.publish(eventbus.EventEnvPlaced, map[string]interface{}{
		"model": modelKey, "id": inst.InstanceID,
	})

	s.forceCull()
	return inst, nil
}

// RemoveEnvironment удаляет объект окружения; слот зануляется, id других
// инстансов не меняются.
func (s *Session) RemoveEnvironment(modelKey string, id int, saveUndo bool) error {
	inst, err := s.instances.RemoveInstance(modelKey, id)
	if err != nil {
		return fmt.Errorf("удаление %s/%d: %w", modelKey, id, err)
	}

	min, max := inst.FootprintBounds()
	s.index.RemoveFootprint(min, max)

	if saveUndo && !s.replaying() {
		s.history.RecordRemoved(*inst)
	}
	if s.metrics != nil {
		s.metrics.instancesRemoved.Inc()
	}
	s.publish(eventbus.EventEnvRemoved, map[string]interface{}{
		"model": modelKey, "id": id,
	})

	s.forceCull()
	return nil
}

// ApplyTransaction применяет транзакцию журнала через общий batched-путь
// (реализация history.Applier). Устаревшие цели окружения трактуются как
// уже применённые и пропускаются.
func (s *Session) ApplyTransaction(tx *history.Transaction) error {
	s.mu.Lock()
	s.applyingHistory = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.applyingHistory = false
		s.mu.Unlock()
	}()

	if len(tx.TerrainAdded) > 0 || len(tx.TerrainRemoved) > 0 {
		s.applyBatchResolved(tx.TerrainAdded, tx.TerrainRemoved, terrain.UpdateOpts{Force: true})
	}

	for _, rec := range tx.EnvironmentRemoved {
		inst, err := s.instances.RemoveInstance(rec.ModelKey, rec.InstanceID)
		if errors.Is(err, instance.ErrInstanceNotFound) {
			logging.Warn("Replay: инстанс %s/%d уже отсутствует, пропущен", rec.ModelKey, rec.InstanceID)
			continue
		}
		if err != nil {
			return err
		}
		min, max := inst.FootprintBounds()
		s.index.RemoveFootprint(min, max)
	}

	for i := range tx.EnvironmentAdded {
		rec := tx.EnvironmentAdded[i]
		inst, err := s.instances.PlaceInstance(rec.ModelKey, rec.Transform, rec.InstanceID)
		if errors.Is(err, instance.ErrSlotOccupied) {
			logging.Warn("Replay: слот %s/%d уже занят, пропущен", rec.ModelKey, rec.InstanceID)
			continue
		}
		if err != nil {
			return err
		}
		min, max := inst.FootprintBounds()
		s.index.InsertFootprint(min, max)
	}

	s.forceCull()
	return nil
}

// Undo отменяет последнюю транзакцию; no-op на пустом журнале
func (s *Session) Undo() error {
	return s.history.Undo()
}

// Redo повторяет отменённую транзакцию; no-op на пустом стеке
func (s *Session) Redo() error {
	return s.history.Redo()
}

// forceCull выполняет немедленный проход куллинга после структурно
// значимого события (размещение, удаление, replay)
func (s *Session) forceCull() {
	s.mu.Lock()
	camera := s.lastCamera
	s.mu.Unlock()

	res := s.instances.CullingPass(camera, nil, true)
	s.recordCullMetrics(res)
}

func (s *Session) recordCullMetrics(res instance.CullResult) {
	if !res.Performed || s.metrics == nil {
		return
	}
	s.metrics.cullingPasses.Inc()
	s.metrics.instancesVisible.Set(float64(res.Visible))
}

// ProcessFrame — одна итерация интерактивного цикла: инкремент пакетного
// импорта, троттленный куллинг, продвижение очереди меш-системы.
func (s *Session) ProcessFrame(camera vec.Vec3Float, frustum *instance.Frustum) {
	s.mu.Lock()
	s.lastCamera = camera
	job := s.job
	s.mu.Unlock()

	if job != nil {
		s.stepImport(job)
	}

	res := s.instances.CullingPass(camera, frustum, false)
	s.recordCullMetrics(res)

	if s.mesh != nil {
		s.mesh.ProcessRenderQueue()
	}
}

// SaveManually — явное сохранение: завершение открытой правки, flush
// террейна, снимки окружения и пользовательских блоков. Дожидается записи.
func (s *Session) SaveManually(ctx context.Context) error {
	if err := s.scheduler.FlushManual(ctx); err != nil {
		return err
	}
	if err := s.store.SaveEnvironment(s.instances.Snapshot()); err != nil {
		return fmt.Errorf("сохранение окружения: %w", err)
	}
	if err := s.store.SaveCustomBlocks(s.registry.All()); err != nil {
		return fmt.Errorf("сохранение пользовательских блоков: %w", err)
	}
	logging.Info("💾 Мир сохранён вручную")
	return nil
}

// ClearMap — «новая карта»: очистка durable store и всех структур.
// Инвалидирует нарезанную работу токеном поколения; сама очистка
// не отменяема.
func (s *Session) ClearMap(ctx context.Context) error {
	s.sctx.SetClearing(true)
	defer s.sctx.SetClearing(false)

	s.sctx.BumpGeneration()
	s.mu.Lock()
	s.job = nil
	s.mu.Unlock()

	if err := s.store.ClearAll(); err != nil {
		return fmt.Errorf("очистка хранилища: %w", err)
	}

	s.terrain.Replace(nil)
	s.index.Clear()
	s.instances.Clear()
	s.tracker.Reset()
	s.history.Clear()
	s.registry.Clear()
	if s.mesh != nil {
		s.mesh.ClearChunks()
	}

	s.publish(eventbus.EventMapCleared, nil)
	logging.Info("🗑 Карта очищена")
	return nil
}

// Load открывает мир из durable store. Ошибка чтения не фатальна:
// мир загружается пустым, ошибка логируется.
func (s *Session) Load(ctx context.Context) error {
	m, err := s.store.LoadTerrain()
	if err != nil {
		logging.Error("Чтение террейна не удалось, мир загружен пустым: %v", err)
		m = make(terrain.TerrainMap)
	}
	s.terrain.Replace(m)
	s.index.UpdateFromTerrain(m)
	if s.mesh != nil {
		s.mesh.RebuildChunks(m)
	}

	env, err := s.store.LoadEnvironment()
	if err != nil {
		logging.Error("Чтение окружения не удалось, список пуст: %v", err)
		env = nil
	}
	s.instances.LoadSnapshot(env)
	for _, inst := range s.instances.Snapshot() {
		min, max := inst.FootprintBounds()
		s.index.InsertFootprint(min, max)
	}

	blocks, err := s.store.LoadCustomBlocks()
	if err != nil {
		logging.Error("Чтение пользовательских блоков не удалось: %v", err)
		blocks = nil
	}
	s.registry.Load(blocks)

	// Базовая линия pending — только что загруженное состояние
	s.tracker.Reset()

	logging.Info("🌍 Мир загружен: %d блоков, %d объектов окружения", len(m), s.instances.Count())
	return nil
}

// BuildUpdateTerrain полностью пересобирает меш и индекс из текущей карты
func (s *Session) BuildUpdateTerrain() {
	m := s.terrain.Snapshot()
	s.index.UpdateFromTerrain(m)
	if s.mesh != nil {
		s.mesh.RebuildChunks(m)
	} else {
		logging.Warn("BuildUpdateTerrain: меш-система не подключена")
	}
}

// CurrentTerrainData возвращает ссылку на текущую карту (O(1));
// вызывающий не должен полагаться на её неизменность.
func (s *Session) CurrentTerrainData() terrain.TerrainMap {
	return s.terrain.Snapshot()
}

// UpdateSpatialIndex — прямой доступ инструментов к патчу индекса
func (s *Session) UpdateSpatialIndex(added, removed terrain.TerrainMap, opts terrain.UpdateOpts) {
	s.index.UpdateBlocks(added, removed, opts)
}

// SetViewDistance задаёт дистанцию видимости: движку инстансов в мировых
// единицах, меш-системе — в регионах.
func (s *Session) SetViewDistance(d float64) {
	if d <= 0 {
		return
	}
	s.instances.SetViewDistance(d)
	if s.mesh != nil {
		s.mesh.SetViewDistance(int(math.Ceil(d / ChunkSize)))
	}
}

// SetFinalizeEditHook регистрирует хук инструмента с открытой правкой;
// вызывается перед ручным сохранением.
func (s *Session) SetFinalizeEditHook(fn func()) {
	s.mu.Lock()
	s.finalizeEdit = fn
	s.mu.Unlock()
}

// Доступ к коллабораторам для обвязки и тестов

func (s *Session) Context() *SessionContext               { return s.sctx }
func (s *Session) Terrain() *terrain.Store                { return s.terrain }
func (s *Session) Registry() *terrain.CustomBlockRegistry { return s.registry }
func (s *Session) Index() *spatial.Index                  { return s.index }
func (s *Session) Instances() *instance.Engine            { return s.instances }
func (s *Session) Tracker() *storage.ChangeTracker        { return s.tracker }
func (s *Session) Scheduler() *storage.PersistenceScheduler {
	return s.scheduler
}
func (s *Session) History() *history.Log { return s.history }
