package instance

import (
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/vec"
)

// zeroMat — нулевая матрица: невидимый инстанс получает нулевой масштаб,
// топология буфера и соответствие id → слот при этом не меняются.
var zeroMat mgl32.Mat4

// modelPool — арена слотов инстансов одной модели.
// Слоты стабильны: удаление возвращает слот во free-list без сдвига остальных.
type modelPool struct {
	buffer   []mgl32.Mat4                 // пер-инстансные матрицы, ёмкость фиксирована
	live     map[int]*EnvironmentInstance // занятые слоты
	free     []int                        // освобождённые слоты, отсортированы по возрастанию
	nextSlot int                          // первый ни разу не выдававшийся слот
}

func newModelPool(capacity int) *modelPool {
	return &modelPool{
		buffer: make([]mgl32.Mat4, capacity),
		live:   make(map[int]*EnvironmentInstance),
	}
}

// allocLowest выдаёт наименьший свободный слот
func (p *modelPool) allocLowest() int {
	if len(p.free) > 0 {
		id := p.free[0]
		p.free = p.free[1:]
		return id
	}
	id := p.nextSlot
	p.nextSlot++
	return id
}

// allocExplicit занимает конкретный слот (replay undo/redo восстанавливает
// точные id). Слоты, перепрыгнутые расширением, уходят во free-list.
func (p *modelPool) allocExplicit(id int) error {
	if _, occupied := p.live[id]; occupied {
		return ErrSlotOccupied
	}

	if id < p.nextSlot {
		i := sort.SearchInts(p.free, id)
		if i >= len(p.free) || p.free[i] != id {
			return ErrSlotOccupied
		}
		p.free = append(p.free[:i], p.free[i+1:]...)
		return nil
	}

	for slot := p.nextSlot; slot < id; slot++ {
		p.free = append(p.free, slot)
	}
	p.nextSlot = id + 1
	return nil
}

// release возвращает слот во free-list, сохраняя сортировку
func (p *modelPool) release(id int) {
	i := sort.SearchInts(p.free, id)
	p.free = append(p.free, 0)
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = id
}

// Engine управляет пулами GPU-инстансов размещённых объектов:
// выделение слотов, композиция трансформов, куллинг видимости,
// контроль глобальной ёмкости.
type Engine struct {
	mu           sync.Mutex
	capacity     int
	viewDistance float64
	cullInterval time.Duration
	graceWindow  time.Duration

	pools     map[string]*modelPool
	liveCount int

	recent   map[recentKey]time.Time // TTL-набор «только что поставлен»
	lastCull time.Time

	now func() time.Time // подменяется в тестах
}

// Options параметры движка инстансов
type Options struct {
	Capacity     int           // глобальный лимит MaxEnvironmentObjects
	ViewDistance float64       // дистанция видимости
	CullInterval time.Duration // минимальный интервал между проходами куллинга
	GraceWindow  time.Duration // окно защиты от куллинга после размещения
}

// NewEngine создаёт движок с фиксированной на всё время жизни ёмкостью
func NewEngine(opts Options) *Engine {
	if opts.Capacity <= 0 {
		opts.Capacity = 4096
	}
	if opts.ViewDistance <= 0 {
		opts.ViewDistance = 128.0
	}
	if opts.CullInterval <= 0 {
		opts.CullInterval = 200 * time.Millisecond
	}
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = 1500 * time.Millisecond
	}

	return &Engine{
		capacity:     opts.Capacity,
		viewDistance: opts.ViewDistance,
		cullInterval: opts.CullInterval,
		graceWindow:  opts.GraceWindow,
		pools:        make(map[string]*modelPool),
		recent:       make(map[recentKey]time.Time),
		now:          time.Now,
	}
}

// PlaceInstance размещает объект окружения. explicitID >= 0 занимает
// конкретный слот (replay undo/redo), иначе выдаётся наименьший свободный.
// Сверх глобального лимита — ErrCapacityExceeded без частичных мутаций.
func (e *Engine) PlaceInstance(modelKey string, tr Transform, explicitID int) (*EnvironmentInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.liveCount >= e.capacity {
		return nil, ErrCapacityExceeded
	}

	pool, ok := e.pools[modelKey]
	if !ok {
		pool = newModelPool(e.capacity)
		e.pools[modelKey] = pool
	}

	var id int
	if explicitID >= 0 {
		if explicitID >= e.capacity {
			return nil, ErrCapacityExceeded
		}
		if err := pool.allocExplicit(explicitID); err != nil {
			return nil, err
		}
		id = explicitID
	} else {
		// Наименьший свободный слот; при liveCount < capacity он всегда
		// в пределах буфера
		id = pool.allocLowest()
	}

	inst := &EnvironmentInstance{
		ModelKey:   modelKey,
		InstanceID: id,
		Transform:  tr,
		Visible:    true,
	}
	pool.live[id] = inst
	pool.buffer[id] = tr.Matrix()
	e.liveCount++

	// Защитное окно: свежепоставленный объект не должен мгновенно
	// исчезнуть из-за прохода куллинга
	e.recent[recentKey{model: modelKey, id: id}] = e.now().Add(e.graceWindow)

	return inst, nil
}

// RemoveInstance освобождает слот. Идентификаторы других инстансов никогда
// не переназначаются; слот зануляется в буфере рендера и уходит во free-list.
func (e *Engine) RemoveInstance(modelKey string, id int) (*EnvironmentInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, ok := e.pools[modelKey]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	inst, ok := pool.live[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}

	delete(pool.live, id)
	pool.buffer[id] = zeroMat
	pool.release(id)
	e.liveCount--
	delete(e.recent, recentKey{model: modelKey, id: id})

	return inst, nil
}

// Get возвращает инстанс по (modelKey, id)
func (e *Engine) Get(modelKey string, id int) (*EnvironmentInstance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, ok := e.pools[modelKey]
	if !ok {
		return nil, false
	}
	inst, ok := pool.live[id]
	return inst, ok
}

// Count возвращает глобальное количество живых инстансов
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveCount
}

// SetViewDistance задаёт дистанцию видимости для куллинга
func (e *Engine) SetViewDistance(d float64) {
	e.mu.Lock()
	if d > 0 {
		e.viewDistance = d
	}
	e.mu.Unlock()
}

// InstanceMatrix возвращает текущую матрицу слота из буфера рендера
func (e *Engine) InstanceMatrix(modelKey string, id int) (mgl32.Mat4, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, ok := e.pools[modelKey]
	if !ok || id < 0 || id >= len(pool.buffer) {
		return zeroMat, false
	}
	return pool.buffer[id], true
}

// Snapshot возвращает упорядоченный список живых инстансов для персистентности
func (e *Engine) Snapshot() []EnvironmentInstance {
	e.mu.Lock()
	defer e.mu.Unlock()

	models := make([]string, 0, len(e.pools))
	for key := range e.pools {
		models = append(models, key)
	}
	sort.Strings(models)

	out := make([]EnvironmentInstance, 0, e.liveCount)
	for _, key := range models {
		pool := e.pools[key]
		ids := make([]int, 0, len(pool.live))
		for id := range pool.live {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			out = append(out, *pool.live[id])
		}
	}
	return out
}

// LoadSnapshot восстанавливает инстансы из сохранённого списка с точными id.
// Конфликтные записи логируются и пропускаются.
func (e *Engine) LoadSnapshot(list []EnvironmentInstance) {
	for i := range list {
		rec := list[i]
		if _, err := e.PlaceInstance(rec.ModelKey, rec.Transform, rec.InstanceID); err != nil {
			logging.Warn("LoadSnapshot: инстанс %s/%d пропущен: %v", rec.ModelKey, rec.InstanceID, err)
		}
	}
}

// Clear удаляет все инстансы и сбрасывает пулы (новая карта)
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pools = make(map[string]*modelPool)
	e.recent = make(map[recentKey]time.Time)
	e.liveCount = 0
}

// visibleLocked решает видимость инстанса; вызывается под мьютексом
func (e *Engine) visibleLocked(inst *EnvironmentInstance, camera vec.Vec3Float, frustum *Frustum, now time.Time) bool {
	key := recentKey{model: inst.ModelKey, id: inst.InstanceID}
	if deadline, ok := e.recent[key]; ok && now.Before(deadline) {
		return true
	}

	distSq := inst.Transform.Position.DistanceSquaredTo(camera)
	if distSq > e.viewDistance*e.viewDistance {
		return false
	}

	if frustum != nil {
		center := mgl32.Vec3{
			float32(inst.Transform.Position.X),
			float32(inst.Transform.Position.Y),
			float32(inst.Transform.Position.Z),
		}
		if !frustum.IntersectsSphere(center, float32(inst.Transform.BoundingRadius())) {
			return false
		}
	}

	return true
}
