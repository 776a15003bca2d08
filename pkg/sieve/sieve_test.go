package sieve

import (
	"errors"
	"sync"
	"testing"

	"github.com/EratoDB/erato/pkg/config"
)

// See https://en.wikipedia.org/wiki/List_of_prime_numbers for the
// expected sequence.
var first100Primes = []uint64{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67, 71,
	73, 79, 83, 89, 97, 101, 103, 107, 109, 113, 127, 131, 137, 139, 149, 151,
	157, 163, 167, 173, 179, 181, 191, 193, 197, 199, 211, 223, 227, 229, 233,
	239, 241, 251, 257, 263, 269, 271, 277, 281, 283, 293, 307, 311, 313, 317,
	331, 337, 347, 349, 353, 359, 367, 373, 379, 383, 389, 397, 401, 409, 419,
	421, 431, 433, 439, 443, 449, 457, 461, 463, 467, 479, 487, 491, 499, 503,
	509, 521, 523, 541,
}

var backendTypes = []config.BackendType{config.BackendDense, config.BackendList}

func newTestSieve(t *testing.T, backend config.BackendType) *Sieve {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Backend = backend
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create %s sieve: %v", backend, err)
	}
	return s
}

// forEachBackend runs a subtest per storage backend, so every query is
// exercised against both the dense flag table and the list variant.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Sieve)) {
	for _, backend := range backendTypes {
		t.Run(string(backend), func(t *testing.T) {
			fn(t, newTestSieve(t, backend))
		})
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(nil)
	if err != nil {
		t.Fatalf("Failed to create sieve with nil config: %v", err)
	}
	if s.BackendKind() != config.BackendDense {
		t.Errorf("Expected default backend %s, got %s", config.BackendDense, s.BackendKind())
	}
	if s.Bound() != config.DefaultInitialBound {
		t.Errorf("Expected initial bound %d, got %d", config.DefaultInitialBound, s.Bound())
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 prime at bound 2, got %d", s.Len())
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := &config.Config{Backend: "btree", InitialBound: 2}
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNewInitialBound(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.InitialBound = 100
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create sieve: %v", err)
	}
	if s.Bound() != 100 {
		t.Errorf("Expected bound 100, got %d", s.Bound())
	}
	if s.Len() != 25 {
		t.Errorf("Expected 25 primes up to 100, got %d", s.Len())
	}
}

func TestNthPrime(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for n, expected := range first100Primes {
			got, err := s.NthPrime(n)
			if err != nil {
				t.Fatalf("NthPrime(%d) failed: %v", n, err)
			}
			if got != expected {
				t.Errorf("NthPrime(%d) = %d, want %d", n, got, expected)
			}
		}
	})
}

func TestNthPrimeNegativeIndex(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		if _, err := s.NthPrime(-1); !errors.Is(err, ErrNegativeIndex) {
			t.Errorf("Expected ErrNegativeIndex, got %v", err)
		}
	})
}

func TestIsPrime(t *testing.T) {
	tests := []struct {
		x        int64
		expected bool
	}{
		{-7, false},
		{0, false},
		{1, false},
		{2, true},
		{3, true},
		{4, false},
		{5, true},
		{6, false},
		{97, true},
		{100, false},
		{100 * 200, false},
		{86 * 97, false},
		{1<<11 - 1, false},
		{1<<13 - 1, true},
	}

	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, tc := range tests {
			got, err := s.IsPrime(tc.x)
			if err != nil {
				t.Fatalf("IsPrime(%d) failed: %v", tc.x, err)
			}
			if got != tc.expected {
				t.Errorf("IsPrime(%d) = %v, want %v", tc.x, got, tc.expected)
			}

			contains, err := s.Contains(tc.x)
			if err != nil {
				t.Fatalf("Contains(%d) failed: %v", tc.x, err)
			}
			if contains != got {
				t.Errorf("Contains(%d) = %v disagrees with IsPrime", tc.x, contains)
			}
		}
	})
}

// The list backend answers probes above its bound by trial division,
// which must agree with the fully sieved dense table.
func TestBackendsAgree(t *testing.T) {
	dense := newTestSieve(t, config.BackendDense)
	list := newTestSieve(t, config.BackendList)

	for x := int64(0); x <= 2000; x++ {
		dgot, err := dense.IsPrime(x)
		if err != nil {
			t.Fatalf("dense IsPrime(%d) failed: %v", x, err)
		}
		lgot, err := list.IsPrime(x)
		if err != nil {
			t.Fatalf("list IsPrime(%d) failed: %v", x, err)
		}
		if dgot != lgot {
			t.Fatalf("Backends disagree at %d: dense=%v list=%v", x, dgot, lgot)
		}
	}
}

func TestPrimesInRange(t *testing.T) {
	tests := []struct {
		lo, hi   int64
		expected []uint64
	}{
		{0, 5, []uint64{2, 3}},
		{2, 5, []uint64{2, 3}},
		{2, 6, []uint64{2, 3, 5}},
		{10, 20, []uint64{11, 13, 17, 19}},
		{10, 19, []uint64{11, 13, 17}},
		{10, 50, []uint64{11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47}},
		{2, 100, first100Primes[:25]},
		{-10, 3, []uint64{2}},
		{14, 16, []uint64{}},
		{20, 10, []uint64{}},
		{5, 5, []uint64{}},
	}

	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, tc := range tests {
			got, err := s.PrimesInRange(tc.lo, tc.hi)
			if err != nil {
				t.Fatalf("PrimesInRange(%d, %d) failed: %v", tc.lo, tc.hi, err)
			}
			if len(got) != len(tc.expected) {
				t.Errorf("PrimesInRange(%d, %d) = %v, want %v", tc.lo, tc.hi, got, tc.expected)
				continue
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("PrimesInRange(%d, %d)[%d] = %d, want %d", tc.lo, tc.hi, i, got[i], tc.expected[i])
				}
			}
		}
	})
}

func TestCountPrimesInRange(t *testing.T) {
	tests := []struct {
		lo, hi   int64
		expected int
	}{
		{4, 3, 0},
		{3, 3, 0},
		{2, 3, 1},
		{2, 4, 2},
		{0, 10, 4},
		{2, 10, 4},
		{3, 10, 3},
		{3, 9, 3},
		{3, 8, 3},
		{3, 7, 2},
		{1, 100, 25},
		{-100, 2, 0},
	}

	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, tc := range tests {
			got, err := s.CountPrimesInRange(tc.lo, tc.hi)
			if err != nil {
				t.Fatalf("CountPrimesInRange(%d, %d) failed: %v", tc.lo, tc.hi, err)
			}
			if got != tc.expected {
				t.Errorf("CountPrimesInRange(%d, %d) = %d, want %d", tc.lo, tc.hi, got, tc.expected)
			}
		}
	})
}

func TestCountPrimesLessOrEqual(t *testing.T) {
	// See https://en.wikipedia.org/wiki/Prime-counting_function for the
	// expected values.
	tests := []struct {
		n        int64
		expected int
	}{
		{-5, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{6, 3},
		{7, 4},
		{8, 4},
		{9, 4},
		{10, 4},
		{100, 25},
		{1000, 168},
		{10000, 1229},
		{100000, 9592},
		{1000000, 78498},
	}

	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, tc := range tests {
			got, err := s.CountPrimesLessOrEqual(tc.n)
			if err != nil {
				t.Fatalf("CountPrimesLessOrEqual(%d) failed: %v", tc.n, err)
			}
			if got != tc.expected {
				t.Errorf("CountPrimesLessOrEqual(%d) = %d, want %d", tc.n, got, tc.expected)
			}
		}
	})
}

func TestCountPrimesLessOrEqualLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping 10^7 prime count in short mode")
	}
	s := newTestSieve(t, config.BackendDense)
	got, err := s.CountPrimesLessOrEqual(10000000)
	if err != nil {
		t.Fatalf("CountPrimesLessOrEqual(10^7) failed: %v", err)
	}
	if got != 664579 {
		t.Errorf("CountPrimesLessOrEqual(10^7) = %d, want 664579", got)
	}
}

func TestNextPrimeGreaterThan(t *testing.T) {
	tests := []struct {
		x        int64
		expected uint64
	}{
		{-10, 2},
		{0, 2},
		{1, 2},
		{2, 3},
		{3, 5},
		{4, 5},
		{100, 101},
		{101, 103},
		{104, 107},
		{107, 109},
		{7907, 7919},
	}

	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, tc := range tests {
			got, err := s.NextPrimeGreaterThan(tc.x)
			if err != nil {
				t.Fatalf("NextPrimeGreaterThan(%d) failed: %v", tc.x, err)
			}
			if got != tc.expected {
				t.Errorf("NextPrimeGreaterThan(%d) = %d, want %d", tc.x, got, tc.expected)
			}
		}
	})
}

func TestPrevPrimeLessThan(t *testing.T) {
	tests := []struct {
		x        int64
		expected uint64
	}{
		{3, 2},
		{4, 3},
		{5, 3},
		{6, 5},
		{7, 5},
		{8, 7},
		{101, 97},
		{104, 103},
		{109, 107},
		{7907, 7901},
	}

	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, tc := range tests {
			got, err := s.PrevPrimeLessThan(tc.x)
			if err != nil {
				t.Fatalf("PrevPrimeLessThan(%d) failed: %v", tc.x, err)
			}
			if got != tc.expected {
				t.Errorf("PrevPrimeLessThan(%d) = %d, want %d", tc.x, got, tc.expected)
			}
		}

		for _, x := range []int64{-5, 0, 1, 2} {
			if _, err := s.PrevPrimeLessThan(x); !errors.Is(err, ErrNoPrimeBelow) {
				t.Errorf("PrevPrimeLessThan(%d): expected ErrNoPrimeBelow, got %v", x, err)
			}
		}
	})
}

func TestNeighborLaws(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for x := int64(0); x <= 500; x++ {
			next, err := s.NextPrimeGreaterThan(x)
			if err != nil {
				t.Fatalf("NextPrimeGreaterThan(%d) failed: %v", x, err)
			}
			if int64(next) <= x {
				t.Fatalf("NextPrimeGreaterThan(%d) = %d is not greater", x, next)
			}
			// Nothing prime strictly between x and the result.
			count, err := s.CountPrimesInRange(x+1, int64(next))
			if err != nil {
				t.Fatalf("CountPrimesInRange failed: %v", err)
			}
			if count != 0 {
				t.Errorf("Found %d primes between %d and %d", count, x, next)
			}
		}
	})
}

func TestIndexOf(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for i, p := range first100Primes {
			got, err := s.IndexOf(p)
			if err != nil {
				t.Fatalf("IndexOf(%d) failed: %v", p, err)
			}
			if got != i {
				t.Errorf("IndexOf(%d) = %d, want %d", p, got, i)
			}
		}

		for _, x := range []uint64{0, 1, 4, 100, 8342} {
			if _, err := s.IndexOf(x); !errors.Is(err, ErrInvalidIndex) {
				t.Errorf("IndexOf(%d): expected ErrInvalidIndex, got %v", x, err)
			}
		}
	})
}

func TestSlice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		got, err := s.Slice(0, 5)
		if err != nil {
			t.Fatalf("Slice(0, 5) failed: %v", err)
		}
		expectSlice(t, got, []uint64{2, 3, 5, 7, 11})

		got, err = s.Slice(2, 4)
		if err != nil {
			t.Fatalf("Slice(2, 4) failed: %v", err)
		}
		expectSlice(t, got, []uint64{5, 7})

		// A positive stop grows the table to cover it.
		got, err = s.Slice(95, 100)
		if err != nil {
			t.Fatalf("Slice(95, 100) failed: %v", err)
		}
		expectSlice(t, got, first100Primes[95:])

		// Negative indices resolve against what is known right now.
		n := s.Len()
		got, err = s.Slice(-3, n)
		if err != nil {
			t.Fatalf("Slice(-3, %d) failed: %v", n, err)
		}
		expectSlice(t, got, s.Primes()[n-3:])
		if s.Len() != n {
			t.Errorf("Negative slice grew the table from %d to %d primes", n, s.Len())
		}

		// Empty and out-of-range slices clamp.
		got, err = s.Slice(4, 2)
		if err != nil {
			t.Fatalf("Slice(4, 2) failed: %v", err)
		}
		expectSlice(t, got, []uint64{})

		got, err = s.Slice(-1000000, 2)
		if err != nil {
			t.Fatalf("Slice(-1000000, 2) failed: %v", err)
		}
		expectSlice(t, got, []uint64{2, 3})
	})
}

func expectSlice(t *testing.T, got, expected []uint64) {
	t.Helper()
	if len(got) != len(expected) {
		t.Errorf("Slice = %v, want %v", got, expected)
		return
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("Slice[%d] = %d, want %d", i, got[i], expected[i])
		}
	}
}

func TestEnsureLen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, n := range []int{1, 10, 100, 1000} {
			if err := s.EnsureLen(n); err != nil {
				t.Fatalf("EnsureLen(%d) failed: %v", n, err)
			}
			if s.Len() < n {
				t.Errorf("After EnsureLen(%d) only %d primes are known", n, s.Len())
			}
		}
	})
}

func TestEnsureBound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, n := range []uint64{1, 10, 100, 1000} {
			if err := s.EnsureBound(n); err != nil {
				t.Fatalf("EnsureBound(%d) failed: %v", n, err)
			}
			if s.Bound() < n {
				t.Errorf("After EnsureBound(%d) the bound is %d", n, s.Bound())
			}
		}
	})
}

// Bound-targeted queries grow to exactly the requested bound, while
// length-targeted queries double. Both policies must be observable.
func TestGrowthPolicies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		if _, err := s.CountPrimesLessOrEqual(100); err != nil {
			t.Fatalf("CountPrimesLessOrEqual failed: %v", err)
		}
		if s.Bound() != 100 {
			t.Errorf("Expected exact growth to bound 100, got %d", s.Bound())
		}

		// Doubling from 100: 200, 400, ...
		if _, err := s.NthPrime(30); err != nil {
			t.Fatalf("NthPrime failed: %v", err)
		}
		if s.Bound() != 200 {
			t.Errorf("Expected doubled bound 200, got %d", s.Bound())
		}
	})
}

// Growing to B in one step and in many steps must produce identical
// prime lists.
func TestIncrementalMatchesOneShot(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		for _, b := range []uint64{3, 10, 50, 51, 52, 100, 500, 1000} {
			if err := s.EnsureBound(b); err != nil {
				t.Fatalf("EnsureBound(%d) failed: %v", b, err)
			}
		}
		// Growing again to an already covered bound changes nothing.
		before := s.Len()
		if err := s.EnsureBound(1000); err != nil {
			t.Fatalf("EnsureBound(1000) failed: %v", err)
		}
		if s.Len() != before {
			t.Errorf("Repeated growth changed prime count from %d to %d", before, s.Len())
		}

		cfg := config.NewDefaultConfig()
		cfg.Backend = s.BackendKind()
		cfg.InitialBound = 1000
		oneShot, err := New(cfg)
		if err != nil {
			t.Fatalf("Failed to create one-shot sieve: %v", err)
		}

		incremental := s.Primes()
		direct := oneShot.Primes()
		if len(incremental) != len(direct) {
			t.Fatalf("Incremental found %d primes, one-shot found %d", len(incremental), len(direct))
		}
		for i := range incremental {
			if incremental[i] != direct[i] {
				t.Errorf("Prime %d differs: incremental %d, one-shot %d", i, incremental[i], direct[i])
			}
		}
	})
}

// Views handed out before growth must not change afterwards.
func TestPrimesViewImmutable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		if err := s.EnsureBound(100); err != nil {
			t.Fatalf("EnsureBound failed: %v", err)
		}
		view := s.Primes()
		snapshot := make([]uint64, len(view))
		copy(snapshot, view)

		if err := s.EnsureBound(100000); err != nil {
			t.Fatalf("EnsureBound failed: %v", err)
		}

		for i := range view {
			if view[i] != snapshot[i] {
				t.Fatalf("View changed at %d after growth: %d != %d", i, view[i], snapshot[i])
			}
		}
	})
}

func TestMaxBoundCap(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.MaxBound = 1000
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create sieve: %v", err)
	}

	if err := s.EnsureBound(1000); err != nil {
		t.Fatalf("EnsureBound(1000) failed: %v", err)
	}
	if err := s.EnsureBound(1001); !errors.Is(err, ErrAllocationFailed) {
		t.Errorf("Expected ErrAllocationFailed beyond the cap, got %v", err)
	}
	// Failed growth leaves the table usable and unchanged.
	if s.Bound() != 1000 {
		t.Errorf("Bound moved to %d after failed growth", s.Bound())
	}
	if got, err := s.CountPrimesLessOrEqual(1000); err != nil || got != 168 {
		t.Errorf("CountPrimesLessOrEqual(1000) = %d, %v after failed growth", got, err)
	}

	// Doubling paths clamp to the cap first, then fail once capped.
	if _, err := s.NthPrime(168); !errors.Is(err, ErrAllocationFailed) {
		t.Errorf("Expected ErrAllocationFailed for prime beyond cap, got %v", err)
	}
}

func TestFindPrimesUntil(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		passes := 0
		err := s.FindPrimesUntil(
			func(s *Sieve) bool { return s.Len() >= 100 },
			func(s *Sieve) { passes++ },
		)
		if err != nil {
			t.Fatalf("FindPrimesUntil failed: %v", err)
		}
		if s.Len() < 100 {
			t.Errorf("Expected at least 100 primes, got %d", s.Len())
		}
		if passes == 0 {
			t.Error("Progress callback was never invoked")
		}

		// Already satisfied: no growth, no callbacks.
		bound := s.Bound()
		err = s.FindPrimesUntil(
			func(s *Sieve) bool { return true },
			func(s *Sieve) { t.Error("Progress invoked for satisfied condition") },
		)
		if err != nil {
			t.Fatalf("FindPrimesUntil failed: %v", err)
		}
		if s.Bound() != bound {
			t.Errorf("Bound grew from %d to %d", bound, s.Bound())
		}
	})
}

func TestStatsTracking(t *testing.T) {
	s := newTestSieve(t, config.BackendDense)
	if _, err := s.NthPrime(10); err != nil {
		t.Fatalf("NthPrime failed: %v", err)
	}
	if _, err := s.IsPrime(97); err != nil {
		t.Fatalf("IsPrime failed: %v", err)
	}
	if _, err := s.NthPrime(-1); err == nil {
		t.Fatal("Expected error")
	}

	statsMap := s.Stats()
	if statsMap["nth_prime_ops"].(uint64) != 1 {
		t.Errorf("Expected 1 nth_prime op, got %v", statsMap["nth_prime_ops"])
	}
	if statsMap["is_prime_ops"].(uint64) != 1 {
		t.Errorf("Expected 1 is_prime op, got %v", statsMap["is_prime_ops"])
	}
	if statsMap["extend_ops"].(uint64) == 0 {
		t.Error("Expected at least one extend op")
	}
	errorsMap, ok := statsMap["errors"].(map[string]uint64)
	if !ok || errorsMap["negative_index"] != 1 {
		t.Errorf("Expected 1 negative_index error, got %v", statsMap["errors"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Sieve) {
		var wg sync.WaitGroup
		errCh := make(chan error, 40)

		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func(seed int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					n := (seed*53 + i*17) % 500
					p, err := s.NthPrime(n)
					if err != nil {
						errCh <- err
						return
					}
					if p < 2 {
						errCh <- errors.New("prime below 2")
						return
					}
				}
			}(g)

			wg.Add(1)
			go func(seed int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					x := int64((seed*101 + i*29) % 3000)
					if _, err := s.IsPrime(x); err != nil {
						errCh <- err
						return
					}
				}
			}(g)
		}

		wg.Wait()
		close(errCh)
		for err := range errCh {
			t.Errorf("Concurrent access failed: %v", err)
		}

		// The table must still be a consistent prime sequence.
		primes := s.Primes()
		for i, p := range primes {
			if p != first100Primes[i] {
				t.Fatalf("Prime %d is %d, want %d", i, p, first100Primes[i])
			}
			if i == len(first100Primes)-1 {
				break
			}
		}
	})
}
