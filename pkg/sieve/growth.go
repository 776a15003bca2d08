package sieve

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/EratoDB/erato/pkg/stats"
	"github.com/EratoDB/erato/pkg/telemetry"
)

// The growth controller. All functions in this file require the
// table's write lock to be held.

// extend runs one incremental Eratosthenes pass over the segment
// (s.bound, newBound]. Work already done for [0, s.bound] is never
// redone: known primes only mark multiples inside the new segment, and
// primes discovered inside the segment sieve its remaining tail.
// Either the whole pass completes and the bound advances, or the table
// is left exactly as it was.
func (s *Sieve) extend(newBound uint64) error {
	old := s.bound
	if newBound <= old {
		return nil
	}
	if s.maxBound != 0 && newBound > s.maxBound {
		s.stats.TrackError("allocation")
		return fmt.Errorf("%w: bound %d exceeds cap %d", ErrAllocationFailed, newBound, s.maxBound)
	}

	start := time.Now()
	ctx, span := s.tel.StartSpan(context.Background(), "sieve.extend",
		attribute.Int64("bound.old", int64(old)),
		attribute.Int64("bound.new", int64(newBound)),
	)
	defer span.End()

	if err := s.backend.Grow(old, newBound); err != nil {
		s.stats.TrackError("allocation")
		return err
	}

	limit := isqrt(newBound)

	// Known primes sieve the new segment, starting no earlier than p*p
	// and never below old+1.
	for _, p := range s.primes {
		if p > limit {
			break
		}
		first := p * p
		if first <= old {
			first = firstMultipleGeq(p, old+1)
		}
		s.markMultiples(p, first, newBound)
	}

	// Scan the segment in order. Survivors are prime; those at or below
	// sqrt(newBound) must immediately sieve the rest of this segment,
	// since their squares fall inside it.
	found := 0
	for x := old + 1; x <= newBound; x++ {
		if !s.backend.Unresolved(x) {
			continue
		}
		s.primes = append(s.primes, x)
		found++
		if x <= limit {
			s.markMultiples(x, x*x, newBound)
		}
	}

	s.backend.Commit(newBound)
	s.bound = newBound

	s.stats.TrackOperationWithLatency(stats.OpExtend, uint64(time.Since(start).Nanoseconds()))
	s.stats.TrackSegment()
	s.stats.TrackBound(s.bound)
	s.stats.TrackPrimeCount(uint64(len(s.primes)))

	telemetry.RecordDuration(ctx, s.tel, telemetry.MetricExtendDuration, start,
		attribute.String(telemetry.AttrBackend, string(s.backend.Kind())))
	s.tel.RecordCounter(ctx, telemetry.MetricPrimesDiscovered, int64(found))
	s.tel.RecordCounter(ctx, telemetry.MetricSegmentsSieved, 1)

	return nil
}

// markMultiples marks composite every multiple of p in [first, bound].
// The loop guards against wraparound near the top of the uint64 range.
func (s *Sieve) markMultiples(p, first, bound uint64) {
	for m := first; m <= bound; m += p {
		s.backend.MarkComposite(m)
		if m > bound-p {
			break
		}
	}
}

// growExact extends the table to exactly the requested bound. Used by
// bound-targeted queries so memory is never overcommitted.
func (s *Sieve) growExact(bound uint64) error {
	return s.extend(bound)
}

// growAmortized extends the table to max(requested, 2*bound), keeping
// total work near-linear across repeated growth.
func (s *Sieve) growAmortized(requested uint64) error {
	target, err := s.amortizedTarget(requested)
	if err != nil {
		return err
	}
	return s.extend(target)
}

// growDouble runs a single doubling pass regardless of any requested
// bound. Used by the iterator and by length-driven growth.
func (s *Sieve) growDouble() error {
	return s.growAmortized(0)
}

// amortizedTarget computes the doubling target for a requested bound,
// clamped to the configured cap.
func (s *Sieve) amortizedTarget(requested uint64) (uint64, error) {
	target := requested
	if s.bound > math.MaxUint64/2 {
		if requested <= s.bound {
			s.stats.TrackError("overflow")
			return 0, fmt.Errorf("%w: cannot double bound %d", ErrBoundOverflow, s.bound)
		}
	} else if doubled := s.bound * 2; doubled > target {
		target = doubled
	}

	if s.maxBound != 0 && target > s.maxBound {
		if requested > s.maxBound {
			s.stats.TrackError("allocation")
			return 0, fmt.Errorf("%w: bound %d exceeds cap %d", ErrAllocationFailed, requested, s.maxBound)
		}
		target = s.maxBound
	}

	if target <= s.bound {
		s.stats.TrackError("allocation")
		return 0, fmt.Errorf("%w: table is capped at bound %d", ErrAllocationFailed, s.bound)
	}
	return target, nil
}

// ensureLenLocked grows (doubling) until at least n primes are known.
func (s *Sieve) ensureLenLocked(n int) error {
	for len(s.primes) < n {
		if err := s.growDouble(); err != nil {
			return err
		}
	}
	return nil
}

// ensurePrimeGreaterLocked grows until the table holds a prime
// strictly greater than x. Termination for any finite x follows from
// Bertrand's postulate; sparse regions may take several rounds.
func (s *Sieve) ensurePrimeGreaterLocked(x uint64) error {
	for len(s.primes) == 0 || s.primes[len(s.primes)-1] <= x {
		if err := s.growAmortized(minGrowTarget(x)); err != nil {
			return err
		}
	}
	return nil
}

// ensurePrimeAtLeastLocked grows until the largest known prime is at
// least x. Used by the list backend to establish sqrt coverage.
func (s *Sieve) ensurePrimeAtLeastLocked(x uint64) error {
	if x == 0 {
		return nil
	}
	return s.ensurePrimeGreaterLocked(x - 1)
}

func minGrowTarget(x uint64) uint64 {
	if x == math.MaxUint64 {
		return x
	}
	return x + 1
}
