// internal/ledger/keylocks.go
package ledger

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

const lockStripes = 256

// KeyLocks serializes in-process units of work by account. Keys hash onto
// striped mutexes taken in ascending order, so units over disjoint pools run
// in parallel and overlapping ones queue without deadlock.
type KeyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func stripeOf(k solana.PublicKey) int {
	h := fnv.New32a()
	_, _ = h.Write(k[:])
	return int(h.Sum32() % lockStripes)
}

// Lock takes the stripes of keys and returns the matching unlock.
func (l *KeyLocks) Lock(keys []solana.PublicKey) func() {
	idx := make([]int, 0, len(keys))
	seen := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		s := stripeOf(k)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		idx = append(idx, s)
	}
	sort.Ints(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}
