// Package stake implements the stake-weighted validator registry used by
// block production: a simple map from address to non-negative weight, plus
// weighted random selection.
package stake

import (
	"math/rand"
	"sort"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// DefaultPeerStake is assigned to a newly registered peer.
const DefaultPeerStake = 50

// DefaultSelfStake is assigned to a node's own identifier when its chain
// is freshly created.
const DefaultSelfStake = 100

// Registry maps validator address to stake weight. It carries no lock of
// its own; callers hold the owning Node's lock.
type Registry struct {
	weights map[chain.Address]int64
}

func New() *Registry {
	return &Registry{weights: make(map[chain.Address]int64)}
}

func (r *Registry) Set(addr chain.Address, weight int64) {
	r.weights[addr] = weight
}

func (r *Registry) Get(addr chain.Address) (int64, bool) {
	w, ok := r.weights[addr]
	return w, ok
}

// EnsureDefault assigns weight to addr only if it has no existing entry.
func (r *Registry) EnsureDefault(addr chain.Address, weight int64) {
	if _, ok := r.weights[addr]; !ok {
		r.weights[addr] = weight
	}
}

func (r *Registry) Snapshot() map[chain.Address]int64 {
	out := make(map[chain.Address]int64, len(r.weights))
	for k, v := range r.weights {
		out[k] = v
	}
	return out
}

// Select performs stake-weighted random validator election using
// inverse-CDF sampling over the cumulative weights, rather than
// materializing a list with each address repeated `weight` times. The
// draw itself is a binary search, O(log n); the sorted cumulative table is
// rebuilt on every call, so a call costs O(n log n) overall.
// Returns ("", false) if no address has positive stake.
func (r *Registry) Select(rng *rand.Rand) (chain.Address, bool) {
	type entry struct {
		addr chain.Address
		cum  int64
	}

	entries := make([]entry, 0, len(r.weights))
	var total int64
	// Sort addresses first so that, for a given rng seed, selection is
	// reproducible regardless of Go's randomized map iteration order.
	addrs := make([]chain.Address, 0, len(r.weights))
	for addr := range r.weights {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, addr := range addrs {
		w := r.weights[addr]
		if w <= 0 {
			continue
		}
		total += w
		entries = append(entries, entry{addr: addr, cum: total})
	}
	if total == 0 {
		return "", false
	}

	target := rng.Int63n(total) + 1 // in (0, total]
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].cum >= target })
	return entries[idx].addr, true
}
