// Package iterator defines the interface for walking an ordered prime
// sequence. It is shared by the engine, the serving layer, and tests so
// consumers can traverse primes without caring how the table grows.
package iterator

// Iterator walks an ordered sequence of primes.
type Iterator interface {
	// Next advances the iterator and reports whether a prime is available.
	// Implementations backed by a lazy table may compute new primes here;
	// Next returns false only when the table could not be grown.
	Next() bool

	// Prime returns the prime at the current position.
	// Only valid after a call to Next that returned true.
	Prime() uint64

	// Index returns the zero-based position of the current prime.
	Index() int

	// Err returns the error that stopped iteration, if any.
	Err() error
}
