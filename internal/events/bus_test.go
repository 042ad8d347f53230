package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishSyncRoutesByType(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	pool := solana.NewWallet().PublicKey()
	var swaps, all int
	bus.SubscribeFunc(SwapExecuted, func(context.Context, Event) error { swaps++; return nil })
	sub := bus.SubscribeFunc(AllEvents, func(context.Context, Event) error { all++; return nil })

	require.NoError(t, bus.PublishSync(context.Background(), &SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted, pool)}))
	require.NoError(t, bus.PublishSync(context.Background(), &LiquidityAddedEvent{BaseEvent: NewBase(LiquidityAdded, pool)}))
	assert.Equal(t, 1, swaps)
	assert.Equal(t, 2, all)

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), &SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted, pool)}))
	assert.Equal(t, 2, swaps)
	assert.Equal(t, 2, all)
}

func TestPublishSyncCollectsErrors(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	boom := errors.New("boom")
	bus.SubscribeFunc(PoolInitialized, func(context.Context, Event) error { return boom })

	err := bus.PublishSync(context.Background(), &PoolInitializedEvent{BaseEvent: NewBase(PoolInitialized, solana.PublicKey{})})
	assert.ErrorIs(t, err, boom)
}

func TestAsyncDeliveryKeepsOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	pool := solana.NewWallet().PublicKey()

	var (
		mu  sync.Mutex
		got []uint64
	)
	bus.SubscribeFunc(SwapExecuted, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(*SwapExecutedEvent).AmountIn)
		return nil
	})

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, bus.Publish(&SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted, pool), AmountIn: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
}

func TestLogHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLogHandler(zap.New(core))

	pool := solana.NewWallet().PublicKey()
	require.NoError(t, h.Handle(context.Background(), &SwapExecutedEvent{
		BaseEvent: NewBase(SwapExecuted, pool),
		Direction: "a_to_b",
		AmountIn:  10,
		AmountOut: 19,
	}))

	entries := logs.FilterMessage("Pool event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, pool.String(), fields["pool"])
	assert.Equal(t, "a_to_b", fields["direction"])
	assert.Equal(t, uint64(19), fields["amount_out"])
}

func TestHandlersRunInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	var order []string
	record := func(name string) func(context.Context, Event) error {
		return func(context.Context, Event) error { order = append(order, name); return nil }
	}
	bus.SubscribeFunc(AllEvents, record("all"))
	bus.SubscribeFunc(SwapExecuted, record("first"))
	second := bus.SubscribeFunc(SwapExecuted, record("second"))
	bus.SubscribeFunc(SwapExecuted, record("third"))

	ev := &SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted, solana.PublicKey{})}
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	assert.Equal(t, []string{"first", "second", "third", "all"}, order)

	order = nil
	second.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	assert.Equal(t, []string{"first", "third", "all"}, order)
	assert.Equal(t, 2, bus.Stats().Handlers[SwapExecuted])
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)

	var started atomic.Bool
	release := make(chan struct{})
	bus.SubscribeFunc(SwapExecuted, func(context.Context, Event) error {
		started.Store(true)
		<-release
		return nil
	})

	ev := &SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted, solana.PublicKey{})}
	require.NoError(t, bus.Publish(ev))
	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ev))
	assert.ErrorIs(t, bus.Publish(ev), ErrBusFull)

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.BufferSize)

	close(release)
	require.NoError(t, bus.Shutdown(context.Background()))
	assert.Equal(t, uint64(2), bus.Stats().Delivered)
}

func TestPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4)
	require.NoError(t, bus.Shutdown(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(&SwapExecutedEvent{BaseEvent: NewBase(SwapExecuted, solana.PublicKey{})})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestFailedDeliveriesAreCounted(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	bus.SubscribeFunc(AllEvents, func(context.Context, Event) error { return errors.New("boom") })
	_ = bus.PublishSync(context.Background(), &LiquidityAddedEvent{BaseEvent: NewBase(LiquidityAdded, solana.PublicKey{})})

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.Failed)
}
