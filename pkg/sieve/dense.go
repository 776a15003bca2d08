package sieve

import (
	"fmt"
	"math"

	"github.com/EratoDB/erato/pkg/config"
)

// denseBackend keeps one bit per integer in [0, limit]: set means
// composite, clear means unresolved or prime. Flags are retained for
// the lifetime of the table, so probes below the bound are single bit
// lookups.
type denseBackend struct {
	words []uint64
	limit uint64
}

var _ Backend = (*denseBackend)(nil)

func newDenseBackend() *denseBackend {
	return &denseBackend{}
}

func (b *denseBackend) Kind() config.BackendType {
	return config.BackendDense
}

// Grow extends the bitset to cover [0, newBound]. The new table is
// allocated and filled before it replaces the old one, so a failed
// allocation leaves every existing flag intact.
func (b *denseBackend) Grow(oldBound, newBound uint64) error {
	if newBound <= b.limit {
		return nil
	}
	if newBound/64 >= math.MaxInt/8 {
		return fmt.Errorf("%w: bound %d needs more flag words than addressable", ErrAllocationFailed, newBound)
	}

	need := int(newBound/64) + 1
	if need > len(b.words) {
		words := make([]uint64, need)
		copy(words, b.words)
		b.words = words
	}
	b.limit = newBound
	return nil
}

func (b *denseBackend) MarkComposite(x uint64) {
	b.words[x>>6] |= 1 << (x & 63)
}

func (b *denseBackend) Unresolved(x uint64) bool {
	return b.words[x>>6]&(1<<(x&63)) == 0
}

func (b *denseBackend) Commit(bound uint64) {}

func (b *denseBackend) Probe(x uint64, primes []uint64, bound uint64) (bool, bool) {
	if x > bound {
		return false, false
	}
	if x < 2 {
		return false, true
	}
	return b.Unresolved(x), true
}
