package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Типы событий редактора
const (
	EventTerrainUpdated = "terrain.updated"
	EventSpatialUpdated = "spatial.updated"
	EventEnvPlaced      = "env.placed"
	EventEnvRemoved     = "env.removed"
	EventFlushOK        = "flush.ok"
	EventFlushFailed    = "flush.failed"
	EventMapCleared     = "map.cleared"
	EventImportDone     = "import.done"
)

// Envelope — универсальный контейнер события редактора.
// UI-слой подписывается на шину, чтобы обновлять панели без опроса.
type Envelope struct {
	ID        string                 // Уникальный идентификатор (UUID)
	Timestamp time.Time              // Время создания события (UTC)
	EventType string                 // Тип события (terrain.updated…)
	Payload   map[string]interface{} // Полезная нагрузка
}

// NewEnvelope создаёт событие указанного типа
func NewEnvelope(eventType string, payload map[string]interface{}) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Payload:   payload,
	}
}

// Filter позволяет подписаться только на нужные типы событий
type Filter struct {
	Types []string // Если пусто — все типы
}

// Subscription возвращается при подписке; позволяет отписаться
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// Bus определяет абстракцию шины уведомлений редактора
type Bus interface {
	Publish(ev *Envelope)
	Subscribe(ctx context.Context, f Filter, h Handler) Subscription
	Metrics() Stats
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	stats       Stats
	buffer      chan *Envelope
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory шину с указанным буфером.
// Путь правок никогда не блокируется: при переполненном буфере
// событие отбрасывается (уведомления — best effort).
func NewMemoryBus(capacity int) Bus {
	if capacity <= 0 {
		capacity = 256
	}
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ev *Envelope) {
	select {
	case mb.buffer <- ev:
		mb.mu.Lock()
		mb.stats.Published++
		mb.mu.Unlock()
	default:
		mb.mu.Lock()
		mb.stats.Dropped++
		mb.mu.Unlock()
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) Subscription {
	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := mb.stats
	s.InFlight = len(mb.buffer)
	return s
}

// dispatchLoop рассылает события подписчикам
func (mb *memoryBus) dispatchLoop() {
	for ev := range mb.buffer {
		mb.mu.RLock()
		subs := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			subs = append(subs, sub)
		}
		mb.mu.RUnlock()

		for _, sub := range subs {
			if !matchFilter(ev, sub.filter) {
				continue
			}
			select {
			case <-sub.ctx.Done():
				continue
			default:
			}
			sub.handler(sub.ctx, ev)
			mb.mu.Lock()
			mb.stats.Consumed++
			mb.mu.Unlock()
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == ev.EventType {
			return true
		}
	}
	return false
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
