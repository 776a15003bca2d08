package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/EratoDB/erato/pkg/sieve"
	"github.com/EratoDB/erato/pkg/snapshot"
)

// handleNth handles GET /v1/primes/nth/:index.
func (s *Server) handleNth(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "index must be an integer")
		return
	}

	p, err := s.sieve.NthPrime(n)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": n, "prime": p})
}

// handleRange handles GET /v1/primes?lo=&hi=. Responses carry an ETag
// over the result so repeat polls of a settled range can be answered
// with 304.
func (s *Server) handleRange(c *gin.Context) {
	lo, ok := queryInt(c, "lo", 0)
	if !ok {
		return
	}
	hi, ok := queryInt(c, "hi", 0)
	if !ok {
		return
	}
	if c.Query("hi") == "" {
		badRequest(c, "hi is required")
		return
	}

	primes, err := s.sieve.PrimesInRange(lo, hi)
	if err != nil {
		s.fail(c, err)
		return
	}

	etag := rangeETag(lo, hi, primes)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	c.JSON(http.StatusOK, gin.H{
		"lo":     lo,
		"hi":     hi,
		"count":  len(primes),
		"primes": primes,
	})
}

// handleCount handles GET /v1/primes/count?max= and ?lo=&hi=.
func (s *Server) handleCount(c *gin.Context) {
	if maxStr := c.Query("max"); maxStr != "" {
		max, err := strconv.ParseInt(maxStr, 10, 64)
		if err != nil {
			badRequest(c, "max must be an integer")
			return
		}
		count, err := s.sieve.CountPrimesLessOrEqual(max)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"max": max, "count": count})
		return
	}

	lo, ok := queryInt(c, "lo", 0)
	if !ok {
		return
	}
	hi, ok := queryInt(c, "hi", 0)
	if !ok {
		return
	}
	if c.Query("hi") == "" {
		badRequest(c, "either max or hi is required")
		return
	}

	count, err := s.sieve.CountPrimesInRange(lo, hi)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lo": lo, "hi": hi, "count": count})
}

// handleCheck handles GET /v1/primes/check/:value.
func (s *Server) handleCheck(c *gin.Context) {
	x, err := strconv.ParseInt(c.Param("value"), 10, 64)
	if err != nil {
		badRequest(c, "value must be an integer")
		return
	}

	isPrime, err := s.sieve.IsPrime(x)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": x, "prime": isPrime})
}

// handleNext handles GET /v1/primes/next/:value.
func (s *Server) handleNext(c *gin.Context) {
	x, err := strconv.ParseInt(c.Param("value"), 10, 64)
	if err != nil {
		badRequest(c, "value must be an integer")
		return
	}

	p, err := s.sieve.NextPrimeGreaterThan(x)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": x, "prime": p})
}

// handlePrev handles GET /v1/primes/prev/:value.
func (s *Server) handlePrev(c *gin.Context) {
	x, err := strconv.ParseInt(c.Param("value"), 10, 64)
	if err != nil {
		badRequest(c, "value must be an integer")
		return
	}

	p, err := s.sieve.PrevPrimeLessThan(x)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": x, "prime": p})
}

// handleSnapshot handles GET /v1/primes/snapshot?codec=. The response
// body is a binary snapshot frame.
func (s *Server) handleSnapshot(c *gin.Context) {
	compression := snapshot.CompressionZstd
	if name := c.Query("codec"); name != "" {
		var err error
		compression, err = snapshot.ParseCompression(name)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	bound, primes := s.sieve.Snapshot()
	frame, err := s.codec.Encode(&snapshot.Snapshot{Bound: bound, Primes: primes}, compression)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("X-Erato-Bound", strconv.FormatUint(bound, 10))
	c.Header("X-Erato-Primes", strconv.Itoa(len(primes)))
	c.Data(http.StatusOK, "application/octet-stream", frame)
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sieve.ErrNegativeIndex):
		status = http.StatusBadRequest
	case errors.Is(err, sieve.ErrNoPrimeBelow), errors.Is(err, sieve.ErrInvalidIndex):
		status = http.StatusNotFound
	case errors.Is(err, sieve.ErrAllocationFailed), errors.Is(err, sieve.ErrBoundOverflow):
		status = http.StatusInsufficientStorage
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// queryInt reads an optional integer query parameter. On a malformed
// value it writes the error response and reports false.
func queryInt(c *gin.Context, name string, fallback int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func rangeETag(lo, hi int64, primes []uint64) string {
	d := xxhash.New()
	fmt.Fprintf(d, "%d:%d:%d", lo, hi, len(primes))
	if len(primes) > 0 {
		fmt.Fprintf(d, ":%d:%d", primes[0], primes[len(primes)-1])
	}
	return fmt.Sprintf(`"%016x"`, d.Sum64())
}
