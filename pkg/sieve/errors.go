package sieve

import "errors"

var (
	// ErrNegativeIndex is returned when a prime is requested at a negative index
	ErrNegativeIndex = errors.New("negative prime index")

	// ErrInvalidIndex is returned when an index lookup is requested for a
	// value that has no index, such as IndexOf on a composite number
	ErrInvalidIndex = errors.New("invalid index")

	// ErrNoPrimeBelow is returned when a lower neighbor is requested below
	// the smallest prime
	ErrNoPrimeBelow = errors.New("no prime below the requested value")

	// ErrAllocationFailed is returned when growth would exceed the
	// configured bound cap; the table is left exactly as it was
	ErrAllocationFailed = errors.New("flag storage allocation failed")

	// ErrBoundOverflow is returned when a growth target cannot be
	// represented; the table is left exactly as it was
	ErrBoundOverflow = errors.New("sieve bound overflow")
)
