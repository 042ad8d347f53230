package export

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/events"
)

// DefaultJournalSize is how many swaps are kept per pool.
const DefaultJournalSize = 1000

// Swap is one committed swap as recorded by the journal.
type Swap struct {
	Timestamp   time.Time        `json:"timestamp"`
	Pool        solana.PublicKey `json:"pool"`
	Owner       solana.PublicKey `json:"owner"`
	Direction   string           `json:"direction"`
	AmountIn    uint64           `json:"amount_in"`
	AmountOut   uint64           `json:"amount_out"`
	Fee         uint64           `json:"fee"`
	ProtocolFee uint64           `json:"protocol_fee"`
	ReserveIn   uint64           `json:"reserve_in"`
	ReserveOut  uint64           `json:"reserve_out"`
}

// Journal keeps the most recent swaps of every pool in memory. It is fed by
// the event bus, so it only ever sees committed swaps.
type Journal struct {
	mu    sync.RWMutex
	size  int
	pools map[solana.PublicKey]*ring
}

type ring struct {
	items []Swap
	next  int
	full  bool
}

var _ events.Handler = (*Journal)(nil)

func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{size: size, pools: make(map[solana.PublicKey]*ring)}
}

// Handle records swap events and ignores everything else.
func (j *Journal) Handle(_ context.Context, event events.Event) error {
	e, ok := event.(*events.SwapExecutedEvent)
	if !ok {
		return nil
	}
	j.Add(swapFromEvent(e))
	return nil
}

func swapFromEvent(e *events.SwapExecutedEvent) Swap {
	return Swap{
		Timestamp:   e.Timestamp(),
		Pool:        e.PoolAddress(),
		Owner:       e.Owner,
		Direction:   e.Direction,
		AmountIn:    e.AmountIn,
		AmountOut:   e.AmountOut,
		Fee:         e.Fee,
		ProtocolFee: e.ProtocolFee,
		ReserveIn:   e.ReserveIn,
		ReserveOut:  e.ReserveOut,
	}
}

func (j *Journal) Add(s Swap) {
	j.mu.Lock()
	defer j.mu.Unlock()

	r, ok := j.pools[s.Pool]
	if !ok {
		r = &ring{items: make([]Swap, j.size)}
		j.pools[s.Pool] = r
	}
	r.items[r.next] = s
	r.next = (r.next + 1) % j.size
	if r.next == 0 {
		r.full = true
	}
}

// Swaps returns the recorded swaps of pool, oldest first.
func (j *Journal) Swaps(pool solana.PublicKey) []Swap {
	j.mu.RLock()
	defer j.mu.RUnlock()

	r, ok := j.pools[pool]
	if !ok {
		return nil
	}
	if !r.full {
		return append([]Swap(nil), r.items[:r.next]...)
	}
	out := make([]Swap, 0, j.size)
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}
