package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan *Envelope) *Envelope {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Событие не доставлено за отведённое время")
		return nil
	}
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	got := make(chan *Envelope, 1)

	bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})

	bus.Publish(NewEnvelope(EventTerrainUpdated, map[string]interface{}{"mutated": 3}))

	ev := waitFor(t, got)
	assert.Equal(t, EventTerrainUpdated, ev.EventType)
	assert.Equal(t, 3, ev.Payload["mutated"])
	assert.NotEmpty(t, ev.ID)
}

func TestBusFilterByType(t *testing.T) {
	bus := NewMemoryBus(16)
	got := make(chan *Envelope, 2)

	bus.Subscribe(context.Background(), Filter{Types: []string{EventFlushOK}}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})

	bus.Publish(NewEnvelope(EventTerrainUpdated, nil))
	bus.Publish(NewEnvelope(EventFlushOK, nil))

	ev := waitFor(t, got)
	assert.Equal(t, EventFlushOK, ev.EventType, "Фильтр должен пропустить только подписанный тип")

	select {
	case extra := <-got:
		t.Fatalf("Лишнее событие прошло фильтр: %s", extra.EventType)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	got := make(chan *Envelope, 1)

	sub := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})
	sub.Unsubscribe()

	bus.Publish(NewEnvelope(EventMapCleared, nil))

	select {
	case <-got:
		t.Fatal("Событие доставлено после отписки")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)

	// Подписчик намеренно стопорит цикл рассылки, чтобы буфер переполнился
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		entered <- struct{}{}
		<-gate
	})

	bus.Publish(NewEnvelope(EventEnvPlaced, nil))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Обработчик не получил первое событие")
	}

	// Цикл рассылки занят: второе событие займёт буфер, остальные отбросятся
	for i := 0; i < 9; i++ {
		bus.Publish(NewEnvelope(EventEnvPlaced, nil))
	}
	close(gate)

	stats := bus.Metrics()
	require.Greater(t, stats.Dropped, uint64(0), "Переполнение должно фиксироваться в метриках")
	assert.Equal(t, uint64(10), stats.Published+stats.Dropped)
}
