// internal/events/handler.go
package events

import (
	"context"

	"go.uber.org/zap"
)

// Handler processes events of a specific type.
type Handler interface {
	// Handle processes an event. Should not block.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription represents a subscription to events.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()
}

// subscription is the internal implementation of Subscription.
type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

// Unsubscribe removes this subscription from the event bus.
func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}

// NewLogHandler returns a handler that records every pool event.
func NewLogHandler(logger *zap.Logger) Handler {
	logger = logger.Named("pool_events")
	return HandlerFunc(func(_ context.Context, event Event) error {
		fields := []zap.Field{
			zap.String("event_type", string(event.Type())),
			zap.String("pool", event.PoolAddress().String()),
			zap.Time("at", event.Timestamp()),
		}

		switch e := event.(type) {
		case *PoolInitializedEvent:
			fields = append(fields,
				zap.String("asset_a", e.AssetA.String()),
				zap.String("asset_b", e.AssetB.String()),
				zap.String("share_mint", e.ShareMint.String()),
				zap.Uint16("fee_rate_bps", e.FeeRateBps))
		case *LiquidityAddedEvent:
			fields = append(fields,
				zap.String("owner", e.Owner.String()),
				zap.Uint64("amount_a", e.AmountA),
				zap.Uint64("amount_b", e.AmountB),
				zap.Uint64("shares", e.Shares),
				zap.Uint64("share_supply", e.ShareSupply))
		case *LiquidityRemovedEvent:
			fields = append(fields,
				zap.String("owner", e.Owner.String()),
				zap.Uint64("shares", e.Shares),
				zap.Uint64("amount_a", e.AmountA),
				zap.Uint64("amount_b", e.AmountB),
				zap.Uint64("share_supply", e.ShareSupply))
		case *SwapExecutedEvent:
			fields = append(fields,
				zap.String("owner", e.Owner.String()),
				zap.String("direction", e.Direction),
				zap.Uint64("amount_in", e.AmountIn),
				zap.Uint64("amount_out", e.AmountOut),
				zap.Uint64("fee", e.Fee),
				zap.Uint64("protocol_fee", e.ProtocolFee))
		}

		logger.Info("Pool event", fields...)
		return nil
	})
}
