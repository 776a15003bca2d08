// Package config holds the sieve configuration and its validation rules.
package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a configuration value is out of range
	ErrInvalidConfig = errors.New("invalid configuration")
)

// BackendType selects the storage representation behind the sieve.
type BackendType string

const (
	// BackendDense keeps a bit per integer in [0, bound]; primality
	// checks are O(1) flag lookups at the cost of memory proportional
	// to the bound.
	BackendDense BackendType = "dense"

	// BackendList keeps only the ordered prime list; primality checks
	// trial-divide by cached primes, trading memory for division work.
	BackendList BackendType = "list"
)

const (
	// DefaultInitialBound is the bound the table is seeded to at
	// construction. 2 is the smallest bound with a non-empty table.
	DefaultInitialBound = 2
)

// Config describes a sieve instance.
type Config struct {
	// Backend selects the flag storage variant.
	Backend BackendType `json:"backend"`

	// InitialBound is the bound sieved eagerly at construction.
	// Must be at least 1.
	InitialBound uint64 `json:"initial_bound"`

	// MaxBound caps how far growth may extend the table. Zero means
	// unlimited (growth is then bounded only by memory and uint64
	// overflow). Growth requests beyond the cap fail atomically.
	MaxBound uint64 `json:"max_bound"`
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig() *Config {
	return &Config{
		Backend:      BackendDense,
		InitialBound: DefaultInitialBound,
		MaxBound:     0,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDense, BackendList:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	if c.InitialBound < 1 {
		return fmt.Errorf("%w: initial bound must be at least 1", ErrInvalidConfig)
	}

	if c.MaxBound != 0 && c.MaxBound < c.InitialBound {
		return fmt.Errorf("%w: max bound %d below initial bound %d", ErrInvalidConfig, c.MaxBound, c.InitialBound)
	}

	return nil
}

// ParseBackend converts a backend name into a BackendType.
func ParseBackend(name string) (BackendType, error) {
	switch name {
	case string(BackendDense):
		return BackendDense, nil
	case string(BackendList):
		return BackendList, nil
	default:
		return "", fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, name)
	}
}
