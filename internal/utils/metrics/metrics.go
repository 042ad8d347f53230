// internal/utils/metrics/metrics.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rovshanmuradov/token-swap/internal/events"
)

// RecordRequest записывает метрики запроса к программе с учетом контекста.
// kind is the program error kind of a rejected request, empty on success.
func (c *Collector) RecordRequest(ctx context.Context, operation string, duration time.Duration, err error, kind string) {
	// Проверяем, не отменен ли контекст
	select {
	case <-ctx.Done():
		c.requests.WithLabelValues(operation, "cancelled", "").Inc()
		return
	default:
	}

	status := "success"
	if err != nil {
		status = "failed"
	}
	c.requests.WithLabelValues(operation, status, kind).Inc()
	c.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// WatchBus exports the event bus counters. stats is sampled on every scrape.
func (c *Collector) WatchBus(stats func() events.BusStats) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "event_bus",
			Name:      "pending",
			Help:      "Events queued for delivery",
		}, func() float64 { return float64(stats().Pending) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "event_bus",
			Name:      "delivered_total",
			Help:      "Events delivered to subscribers",
		}, func() float64 { return float64(stats().Delivered) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "event_bus",
			Name:      "dropped_total",
			Help:      "Events dropped on a full queue",
		}, func() float64 { return float64(stats().Dropped) }),
	)
}
