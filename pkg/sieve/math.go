package sieve

import "math"

// maxRoot is floor(sqrt(2^64 - 1)); any candidate at or below it can be
// squared without overflow.
const maxRoot = 4294967295

// isqrt returns floor(sqrt(n)). The float conversion can be off by one
// near perfect squares, so the result is nudged back into place.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	r := uint64(math.Sqrt(float64(n)))
	if r > maxRoot {
		r = maxRoot
	}
	for r > 0 && r*r > n {
		r--
	}
	for r < maxRoot && (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// firstMultipleGeq returns the smallest multiple of n greater than or
// equal to m. n must be positive.
func firstMultipleGeq(n, m uint64) uint64 {
	return m + (n-m%n)%n
}
