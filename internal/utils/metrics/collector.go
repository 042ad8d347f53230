// internal/utils/metrics/collector.go
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// Namespace prefixes every exported metric.
const Namespace = "token_swap"

// Collector owns a private registry so that several collectors (tests, one
// per server) never collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	reserves    *prometheus.GaugeVec
	shareSupply *prometheus.GaugeVec
	swapVolume  *prometheus.CounterVec
	fees        *prometheus.CounterVec
	events      *prometheus.CounterVec
}

var _ events.Handler = (*Collector)(nil)

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Program requests by operation and outcome",
			},
			[]string{"operation", "status", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "Program request latency in seconds, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"operation"},
		),
		reserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "pool_reserve",
				Help:      "Vault balance after the last committed change",
			},
			[]string{"pool", "side"},
		),
		shareSupply: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "pool_share_supply",
				Help:      "Outstanding liquidity shares",
			},
			[]string{"pool"},
		),
		swapVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "swap_input_total",
				Help:      "Swap input amounts in base units",
			},
			[]string{"pool", "direction"},
		),
		fees: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "swap_fees_total",
				Help:      "Swap fees charged, split by destination",
			},
			[]string{"pool", "direction", "destination"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pool_events_total",
				Help:      "Pool events observed",
			},
			[]string{"type"},
		),
	}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	c.registry.MustRegister(
		c.requests,
		c.duration,
		c.reserves,
		c.shareSupply,
		c.swapVolume,
		c.fees,
		c.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the collector's registry to an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handle updates pool gauges and counters from a committed pool event.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	c.events.WithLabelValues(string(event.Type())).Inc()
	pool := event.PoolAddress().String()

	switch e := event.(type) {
	case *events.PoolInitializedEvent:
		c.setReserves(pool, 0, 0)
		c.shareSupply.WithLabelValues(pool).Set(0)
	case *events.LiquidityAddedEvent:
		c.setReserves(pool, e.ReserveA, e.ReserveB)
		c.shareSupply.WithLabelValues(pool).Set(float64(e.ShareSupply))
	case *events.LiquidityRemovedEvent:
		c.setReserves(pool, e.ReserveA, e.ReserveB)
		c.shareSupply.WithLabelValues(pool).Set(float64(e.ShareSupply))
	case *events.SwapExecutedEvent:
		c.swapVolume.WithLabelValues(pool, e.Direction).Add(float64(e.AmountIn))
		c.fees.WithLabelValues(pool, e.Direction, "vault").Add(float64(e.Fee - e.ProtocolFee))
		if e.ProtocolFee > 0 {
			c.fees.WithLabelValues(pool, e.Direction, "collector").Add(float64(e.ProtocolFee))
		}
		in, out := "a", "b"
		if e.Direction == types.BToA.String() {
			in, out = "b", "a"
		}
		c.reserves.WithLabelValues(pool, in).Set(float64(e.ReserveIn))
		c.reserves.WithLabelValues(pool, out).Set(float64(e.ReserveOut))
	}
	return nil
}

func (c *Collector) setReserves(pool string, a, b uint64) {
	c.reserves.WithLabelValues(pool, "a").Set(float64(a))
	c.reserves.WithLabelValues(pool, "b").Set(float64(b))
}
