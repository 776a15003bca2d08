package sieve

import (
	"fmt"

	"github.com/EratoDB/erato/pkg/config"
)

// Backend is the capability contract between the growth controller and
// the primality flag storage. Implementations only record and report
// composite marks; ordering, growth policy and the prime list itself
// live in the Sieve.
//
// Grow, MarkComposite, Unresolved and Commit are only called by the
// growth controller while it holds the table's write lock, in the
// sequence Grow -> (MarkComposite|Unresolved)* -> Commit. Probe may be
// called concurrently under the read lock.
type Backend interface {
	// Kind identifies the storage variant.
	Kind() config.BackendType

	// Grow prepares flag storage for the segment (oldBound, newBound].
	// It either succeeds completely or fails leaving prior flags
	// untouched, so a failed growth never corrupts the table.
	Grow(oldBound, newBound uint64) error

	// MarkComposite records x as composite. Once marked, a value is
	// never unmarked. Only valid for x inside the grown segment (or, for
	// the dense variant, anywhere below it).
	MarkComposite(x uint64)

	// Unresolved reports whether x has not been marked composite.
	// Only valid for x the backend currently holds flags for.
	Unresolved(x uint64) bool

	// Commit finalizes the segment after a growth pass. The dense
	// variant keeps its flags; the list variant drops its scratch.
	Commit(bound uint64)

	// Probe answers the primality of x without growing the table.
	// ok is false when the backend cannot decide from finalized data:
	// the caller must grow and retry. primes is the current ordered
	// prime list and bound the current finalized bound.
	Probe(x uint64, primes []uint64, bound uint64) (isPrime, ok bool)
}

func newBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendDense:
		return newDenseBackend(), nil
	case config.BackendList:
		return newListBackend(), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}
