package sieve

import (
	"fmt"
	"math"
	"sort"

	"github.com/EratoDB/erato/pkg/config"
)

// listBackend keeps no flags between growth passes. Each new segment is
// sieved in a transient scratch bitmap released on Commit, and probes
// are answered by binary search below the bound or trial division by
// cached primes above it.
type listBackend struct {
	scratch []uint64
	segLo   uint64
	segHi   uint64
}

var _ Backend = (*listBackend)(nil)

func newListBackend() *listBackend {
	return &listBackend{}
}

func (b *listBackend) Kind() config.BackendType {
	return config.BackendList
}

// Grow allocates scratch flags for the segment (oldBound, newBound]
// only; nothing is retained across passes.
func (b *listBackend) Grow(oldBound, newBound uint64) error {
	if newBound <= oldBound {
		return nil
	}
	span := newBound - oldBound
	if span/64 >= math.MaxInt/8 {
		return fmt.Errorf("%w: segment of %d values exceeds addressable scratch", ErrAllocationFailed, span)
	}

	b.scratch = make([]uint64, int(span/64)+1)
	b.segLo = oldBound + 1
	b.segHi = newBound
	return nil
}

func (b *listBackend) MarkComposite(x uint64) {
	i := x - b.segLo
	b.scratch[i>>6] |= 1 << (i & 63)
}

func (b *listBackend) Unresolved(x uint64) bool {
	i := x - b.segLo
	return b.scratch[i>>6]&(1<<(i&63)) == 0
}

func (b *listBackend) Commit(bound uint64) {
	b.scratch = nil
	b.segLo, b.segHi = 0, 0
}

func (b *listBackend) Probe(x uint64, primes []uint64, bound uint64) (bool, bool) {
	if x < 2 {
		return false, true
	}

	if x <= bound {
		i := sort.Search(len(primes), func(i int) bool { return primes[i] >= x })
		return i < len(primes) && primes[i] == x, true
	}

	// Above the bound, trial division is sound only while the cached
	// primes cover sqrt(x).
	if len(primes) == 0 {
		return false, false
	}
	root := isqrt(x)
	if primes[len(primes)-1] < root {
		return false, false
	}
	for _, p := range primes {
		if p > root {
			break
		}
		if x%p == 0 {
			return false, true
		}
	}
	return true, true
}
