// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"

	PoolInitialized  EventType = "pool.initialized"
	LiquidityAdded   EventType = "pool.liquidity_added"
	LiquidityRemoved EventType = "pool.liquidity_removed"
	SwapExecuted     EventType = "pool.swap_executed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	PoolAddress() solana.PublicKey
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
	Pool      solana.PublicKey
}

// NewBase stamps an event of type t for pool with the current time.
func NewBase(t EventType, pool solana.PublicKey) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC(), Pool: pool}
}

func (e BaseEvent) Type() EventType { return e.EventType }

func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

func (e BaseEvent) PoolAddress() solana.PublicKey { return e.Pool }

// PoolInitializedEvent is emitted once per pair, after the record is created.
type PoolInitializedEvent struct {
	BaseEvent
	Admin        solana.PublicKey
	AssetA       solana.PublicKey
	AssetB       solana.PublicKey
	ShareMint    solana.PublicKey
	FeeRateBps   uint16
	FeeCollector solana.PublicKey
}

// LiquidityAddedEvent is emitted after a deposit commits.
type LiquidityAddedEvent struct {
	BaseEvent
	Owner       solana.PublicKey
	AmountA     uint64
	AmountB     uint64
	Shares      uint64
	ReserveA    uint64 // after the deposit
	ReserveB    uint64
	ShareSupply uint64
}

// LiquidityRemovedEvent is emitted after a withdrawal commits.
type LiquidityRemovedEvent struct {
	BaseEvent
	Owner       solana.PublicKey
	Shares      uint64
	AmountA     uint64
	AmountB     uint64
	ReserveA    uint64
	ReserveB    uint64
	ShareSupply uint64
}

// SwapExecutedEvent is emitted after a swap commits.
type SwapExecutedEvent struct {
	BaseEvent
	Owner       solana.PublicKey
	Direction   string
	AmountIn    uint64
	AmountOut   uint64
	Fee         uint64
	ProtocolFee uint64
	ReserveIn   uint64 // after the swap
	ReserveOut  uint64
}
