package sieve

import (
	"github.com/EratoDB/erato/pkg/common/iterator"
	"github.com/EratoDB/erato/pkg/stats"
)

// Iterator walks the prime sequence in order, growing the table as it
// advances. It never terminates on its own; the caller decides when to
// stop. A failed growth step ends the iteration with Err set.
type Iterator struct {
	s   *Sieve
	idx int
	cur uint64
	err error
}

var _ iterator.Iterator = (*Iterator)(nil)

// Iterator returns an iterator positioned before the first prime.
// Iterators are independent; each one tracks its own position.
func (s *Sieve) Iterator() *Iterator {
	return &Iterator{s: s, idx: -1}
}

// Next advances to the next prime. It returns false only when growth
// fails, in which case Err reports the cause.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}

	next := it.idx + 1
	if err := it.s.EnsureLen(next + 1); err != nil {
		it.err = err
		return false
	}

	it.s.mu.RLock()
	it.cur = it.s.primes[next]
	it.s.mu.RUnlock()

	it.idx = next
	it.s.stats.TrackOperation(stats.OpIterate)
	return true
}

// Prime returns the prime at the current position.
func (it *Iterator) Prime() uint64 {
	return it.cur
}

// Index returns the current position, starting at 0 for the prime 2.
func (it *Iterator) Index() int {
	return it.idx
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
