package editor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics инкапсулирует Prometheus-метрики сессии редактора
type Metrics struct {
	blocksUpdated    prometheus.Counter
	flushOps         prometheus.Counter
	flushFailures    prometheus.Counter
	instancesPlaced  prometheus.Counter
	instancesRemoved prometheus.Counter
	cullingPasses    prometheus.Counter
	instancesVisible prometheus.Gauge
	pendingOps       prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики в глобальном регистре Prometheus.
// Вызывается один раз за процесс (из main).
func NewMetrics() *Metrics {
	m := &Metrics{
		blocksUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "blocks_updated_total",
			Help:      "Общее число изменённых позиций террейна.",
		}),
		flushOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "flush_ops_total",
			Help:      "Операций террейна, записанных в durable store.",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "flush_failures_total",
			Help:      "Неудачных попыток flush.",
		}),
		instancesPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "instances_placed_total",
			Help:      "Размещено объектов окружения.",
		}),
		instancesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "instances_removed_total",
			Help:      "Удалено объектов окружения.",
		}),
		cullingPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Name:      "culling_passes_total",
			Help:      "Выполнено проходов куллинга.",
		}),
		instancesVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "editor",
			Name:      "instances_visible",
			Help:      "Видимых инстансов после последнего прохода куллинга.",
		}),
		pendingOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "editor",
			Name:      "pending_ops",
			Help:      "Несохранённых операций террейна.",
		}),
	}

	prometheus.MustRegister(
		m.blocksUpdated, m.flushOps, m.flushFailures,
		m.instancesPlaced, m.instancesRemoved,
		m.cullingPasses, m.instancesVisible, m.pendingOps,
	)
	return m
}
