// Package sieve implements an incremental sieve of Eratosthenes: a
// prime table that grows on demand, reusing all previously computed
// work, with binary-search queries layered on top of the ordered prime
// list.
package sieve

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/EratoDB/erato/pkg/config"
	"github.com/EratoDB/erato/pkg/stats"
	"github.com/EratoDB/erato/pkg/telemetry"
)

// Sieve is an incrementally growing prime table. The zero value is not
// usable; construct with New. All methods are safe for concurrent use:
// growth is serialized behind the write lock, reads that are already
// satisfiable take only the read lock.
type Sieve struct {
	mu       sync.RWMutex
	backend  Backend
	primes   []uint64
	bound    uint64
	maxBound uint64

	stats stats.Collector
	tel   telemetry.Telemetry
}

// Option configures a Sieve at construction.
type Option func(*Sieve)

// WithStatsCollector replaces the internal statistics collector.
func WithStatsCollector(c stats.Collector) Option {
	return func(s *Sieve) {
		s.stats = c
	}
}

// WithTelemetry attaches a telemetry implementation. Defaults to no-op.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(s *Sieve) {
		s.tel = tel
	}
}

// New creates a sieve from the configuration and eagerly sieves up to
// the configured initial bound.
func New(cfg *config.Config, opts ...Option) (*Sieve, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	s := &Sieve{
		backend:  backend,
		primes:   make([]uint64, 0, 16),
		bound:    1,
		maxBound: cfg.MaxBound,
		stats:    stats.NewAtomicCollector(),
		tel:      telemetry.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.InitialBound > s.bound {
		if err := s.extend(cfg.InitialBound); err != nil {
			return nil, fmt.Errorf("failed to seed sieve to bound %d: %w", cfg.InitialBound, err)
		}
	}
	return s, nil
}

// BackendKind reports which storage variant backs the table.
func (s *Sieve) BackendKind() config.BackendType {
	return s.backend.Kind()
}

// Bound returns the largest integer whose primality is final.
func (s *Sieve) Bound() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bound
}

// Len returns the number of primes computed so far. This is a snapshot
// of the growing table, not a claim about all primes.
func (s *Sieve) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primes)
}

// Primes returns a read-only view of the primes computed so far. The
// view is immutable: the list is append-only and the capped slice
// cannot reach entries appended later.
func (s *Sieve) Primes() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primes[:len(s.primes):len(s.primes)]
}

// Snapshot returns the bound and the prime view as one consistent
// pair. Primes() followed by Bound() could straddle a growth pass;
// this cannot.
func (s *Sieve) Snapshot() (uint64, []uint64) {
	s.mu.RLock()
	bound := s.bound
	view := s.primes[:len(s.primes):len(s.primes)]
	s.mu.RUnlock()

	s.stats.TrackOperation(stats.OpSnapshot)
	return bound, view
}

// Stats returns the current statistics for the sieve.
func (s *Sieve) Stats() map[string]interface{} {
	return s.stats.GetStats()
}

// EnsureBound grows the table so every integer up to n has final
// primality. Grows to exactly n: direct bound-targeted growth never
// overcommits memory.
func (s *Sieve) EnsureBound(n uint64) error {
	s.mu.RLock()
	done := n <= s.bound
	s.mu.RUnlock()
	if done {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.growExact(n)
}

// EnsureLen grows the table (doubling) until at least n primes are
// known.
func (s *Sieve) EnsureLen(n int) error {
	s.mu.RLock()
	done := len(s.primes) >= n
	s.mu.RUnlock()
	if done {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLenLocked(n)
}

// NthPrime returns the k-th prime, 0-indexed: NthPrime(0) == 2.
// The table grows as needed.
func (s *Sieve) NthPrime(n int) (uint64, error) {
	if n < 0 {
		s.stats.TrackError("negative_index")
		return 0, fmt.Errorf("%w: %d", ErrNegativeIndex, n)
	}

	start := time.Now()
	if err := s.EnsureLen(n + 1); err != nil {
		return 0, err
	}

	s.mu.RLock()
	p := s.primes[n]
	s.mu.RUnlock()

	s.stats.TrackOperationWithLatency(stats.OpNthPrime, uint64(time.Since(start).Nanoseconds()))
	return p, nil
}

// IsPrime reports whether x is prime, growing the table as needed.
// Defined false for every x below 2. The dense backend grows to bound
// x exactly; the list backend only grows its prime list far enough to
// cover sqrt(x), then trial-divides.
func (s *Sieve) IsPrime(x int64) (bool, error) {
	if x < 2 {
		return false, nil
	}
	ux := uint64(x)

	start := time.Now()
	for {
		s.mu.RLock()
		isPrime, ok := s.backend.Probe(ux, s.primes, s.bound)
		s.mu.RUnlock()
		if ok {
			s.stats.TrackOperationWithLatency(stats.OpIsPrime, uint64(time.Since(start).Nanoseconds()))
			return isPrime, nil
		}

		if s.backend.Kind() == config.BackendList {
			s.mu.Lock()
			err := s.ensurePrimeAtLeastLocked(isqrt(ux))
			s.mu.Unlock()
			if err != nil {
				return false, err
			}
		} else {
			if err := s.EnsureBound(ux); err != nil {
				return false, err
			}
		}
	}
}

// Contains is an alias for IsPrime, matching set-membership phrasing.
func (s *Sieve) Contains(x int64) (bool, error) {
	return s.IsPrime(x)
}

// PrimesInRange returns the primes p with lo <= p < hi, growing the
// table to cover the range. The result is an immutable view into the
// table.
func (s *Sieve) PrimesInRange(lo, hi int64) ([]uint64, error) {
	start := time.Now()
	if hi <= 2 || hi <= lo {
		s.stats.TrackOperation(stats.OpRange)
		return []uint64{}, nil
	}

	hiBound := uint64(hi - 1)
	if err := s.EnsureBound(hiBound); err != nil {
		return nil, err
	}

	var loVal uint64
	if lo > 0 {
		loVal = uint64(lo)
	}

	s.mu.RLock()
	i := lowerBound(s.primes, loVal)
	j := upperBound(s.primes, hiBound)
	view := s.primes[i:j:j]
	s.mu.RUnlock()

	s.stats.TrackOperationWithLatency(stats.OpRange, uint64(time.Since(start).Nanoseconds()))
	return view, nil
}

// CountPrimesInRange returns the number of primes p with lo <= p < hi
// without materializing them.
func (s *Sieve) CountPrimesInRange(lo, hi int64) (int, error) {
	start := time.Now()
	if hi <= 2 || hi <= lo {
		s.stats.TrackOperation(stats.OpCount)
		return 0, nil
	}

	hiBound := uint64(hi - 1)
	if err := s.EnsureBound(hiBound); err != nil {
		return 0, err
	}

	var loVal uint64
	if lo > 0 {
		loVal = uint64(lo)
	}

	s.mu.RLock()
	count := upperBound(s.primes, hiBound) - lowerBound(s.primes, loVal)
	s.mu.RUnlock()

	s.stats.TrackOperationWithLatency(stats.OpCount, uint64(time.Since(start).Nanoseconds()))
	return count, nil
}

// CountPrimesLessOrEqual returns pi(n), the number of primes <= n.
func (s *Sieve) CountPrimesLessOrEqual(n int64) (int, error) {
	start := time.Now()
	if n < 2 {
		s.stats.TrackOperation(stats.OpCount)
		return 0, nil
	}

	un := uint64(n)
	if err := s.EnsureBound(un); err != nil {
		return 0, err
	}

	s.mu.RLock()
	count := upperBound(s.primes, un)
	s.mu.RUnlock()

	s.stats.TrackOperationWithLatency(stats.OpCount, uint64(time.Since(start).Nanoseconds()))
	return count, nil
}

// NextPrimeGreaterThan returns the smallest prime strictly greater
// than x, growing (doubling) until one is known.
func (s *Sieve) NextPrimeGreaterThan(x int64) (uint64, error) {
	start := time.Now()
	var ux uint64
	if x > 0 {
		ux = uint64(x)
	}

	s.mu.RLock()
	satisfied := len(s.primes) > 0 && s.primes[len(s.primes)-1] > ux
	s.mu.RUnlock()
	if !satisfied {
		s.mu.Lock()
		err := s.ensurePrimeGreaterLocked(ux)
		s.mu.Unlock()
		if err != nil {
			return 0, err
		}
	}

	s.mu.RLock()
	p := s.primes[upperBound(s.primes, ux)]
	s.mu.RUnlock()

	s.stats.TrackOperationWithLatency(stats.OpNext, uint64(time.Since(start).Nanoseconds()))
	return p, nil
}

// PrevPrimeLessThan returns the largest prime strictly less than x.
// Fails with ErrNoPrimeBelow when x <= 2, since 2 is the smallest
// prime.
func (s *Sieve) PrevPrimeLessThan(x int64) (uint64, error) {
	if x <= 2 {
		s.stats.TrackError("no_prime_below")
		return 0, fmt.Errorf("%w: %d", ErrNoPrimeBelow, x)
	}

	start := time.Now()
	ux := uint64(x)
	// Everything below x is final once the bound reaches x.
	if err := s.EnsureBound(ux); err != nil {
		return 0, err
	}

	s.mu.RLock()
	p := s.primes[lowerBound(s.primes, ux)-1]
	s.mu.RUnlock()

	s.stats.TrackOperationWithLatency(stats.OpPrev, uint64(time.Since(start).Nanoseconds()))
	return p, nil
}

// IndexOf returns the position of a prime in the sequence, so
// IndexOf(2) == 0. Fails with ErrInvalidIndex when p is not prime.
func (s *Sieve) IndexOf(p uint64) (int, error) {
	start := time.Now()
	if p >= 2 {
		if err := s.EnsureBound(p); err != nil {
			return 0, err
		}

		s.mu.RLock()
		i := lowerBound(s.primes, p)
		found := i < len(s.primes) && s.primes[i] == p
		s.mu.RUnlock()

		if found {
			s.stats.TrackOperationWithLatency(stats.OpIndexOf, uint64(time.Since(start).Nanoseconds()))
			return i, nil
		}
	}

	s.stats.TrackError("not_a_prime")
	return 0, fmt.Errorf("%w: %d is not prime", ErrInvalidIndex, p)
}

// Slice returns primes by position with Python slice semantics:
// negative indices count back from the primes known right now (the end
// of an unbounded sequence is not well-defined, so negative indices
// never trigger growth), while a positive stop grows the table to
// cover position stop-1. Out-of-range positions clamp. The result is
// an immutable view.
func (s *Sieve) Slice(start, stop int) ([]uint64, error) {
	opStart := time.Now()
	if stop > 0 {
		if err := s.EnsureLen(stop); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.primes)
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop += n
		if stop < 0 {
			stop = 0
		}
	}
	if start > n {
		start = n
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		s.stats.TrackOperation(stats.OpSlice)
		return []uint64{}, nil
	}

	view := s.primes[start:stop:stop]
	s.stats.TrackOperationWithLatency(stats.OpSlice, uint64(time.Since(opStart).Nanoseconds()))
	return view, nil
}

// FindPrimesUntil extends the table segment by segment until stop
// returns true, calling progress (when non-nil) after every pass.
// The stop callback is evaluated before each pass, so a sieve that
// already satisfies it is not grown at all.
func (s *Sieve) FindPrimesUntil(stop func(*Sieve) bool, progress func(*Sieve)) error {
	for !stop(s) {
		s.mu.Lock()
		err := s.growDouble()
		s.mu.Unlock()
		if err != nil {
			return err
		}
		if progress != nil {
			progress(s)
		}
	}
	return nil
}

// lowerBound returns the index of the first prime >= x.
func lowerBound(primes []uint64, x uint64) int {
	return sort.Search(len(primes), func(i int) bool { return primes[i] >= x })
}

// upperBound returns the index of the first prime > x.
func upperBound(primes []uint64, x uint64) int {
	return sort.Search(len(primes), func(i int) bool { return primes[i] > x })
}
