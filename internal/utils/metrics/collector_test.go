package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/token-swap/internal/events"
)

func TestHandleUpdatesPoolGauges(t *testing.T) {
	c := NewCollector()
	pool := solana.NewWallet().PublicKey()
	id := pool.String()
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, &events.LiquidityAddedEvent{
		BaseEvent:   events.NewBase(events.LiquidityAdded, pool),
		ReserveA:    1_000,
		ReserveB:    2_000,
		ShareSupply: 1_414,
	}))
	require.NoError(t, c.Handle(ctx, &events.SwapExecutedEvent{
		BaseEvent:   events.NewBase(events.SwapExecuted, pool),
		Direction:   "b_to_a",
		AmountIn:    100,
		Fee:         10,
		ProtocolFee: 4,
		ReserveIn:   2_096,
		ReserveOut:  953,
	}))

	assert.Equal(t, 953.0, testutil.ToFloat64(c.reserves.WithLabelValues(id, "a")))
	assert.Equal(t, 2_096.0, testutil.ToFloat64(c.reserves.WithLabelValues(id, "b")))
	assert.Equal(t, 1_414.0, testutil.ToFloat64(c.shareSupply.WithLabelValues(id)))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.swapVolume.WithLabelValues(id, "b_to_a")))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.fees.WithLabelValues(id, "b_to_a", "vault")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.fees.WithLabelValues(id, "b_to_a", "collector")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues(string(events.SwapExecuted))))
}

func TestRecordRequest(t *testing.T) {
	c := NewCollector()

	c.RecordRequest(context.Background(), "swap", 3*time.Millisecond, nil, "")
	c.RecordRequest(context.Background(), "swap", time.Millisecond, errors.New("nope"), "SlippageExceeded")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	c.RecordRequest(cancelled, "swap", time.Millisecond, nil, "")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("swap", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("swap", "failed", "SlippageExceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("swap", "cancelled", "")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollectorsDoNotShareRegistry(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	assert.NotSame(t, a.Registry(), b.Registry())

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestWatchBus(t *testing.T) {
	c := NewCollector()
	c.WatchBus(func() events.BusStats {
		return events.BusStats{Pending: 3, Delivered: 10, Dropped: 2}
	})

	n, err := testutil.GatherAndCount(c.Registry(),
		"token_swap_event_bus_pending",
		"token_swap_event_bus_delivered_total",
		"token_swap_event_bus_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mfs, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "token_swap_event_bus_dropped_total" {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
