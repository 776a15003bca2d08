// Package server exposes the sieve over HTTP. Queries map onto the
// engine one to one; bulk state moves as compressed snapshot frames.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EratoDB/erato/pkg/common/log"
	"github.com/EratoDB/erato/pkg/sieve"
	"github.com/EratoDB/erato/pkg/snapshot"
)

// Config controls the HTTP server.
type Config struct {
	// ListenAddr is the address the server binds to.
	ListenAddr string

	// Logger receives request and lifecycle logs. Defaults to the
	// package default logger.
	Logger log.Logger

	// Registry receives the server metrics and backs the /metrics
	// endpoint. Defaults to a fresh registry.
	Registry *prometheus.Registry
}

// Server serves sieve queries over HTTP.
type Server struct {
	sieve   *sieve.Sieve
	codec   *snapshot.Codec
	router  *gin.Engine
	logger  log.Logger
	metrics *serverMetrics
	started time.Time
}

// New creates a server around an existing sieve.
func New(s *sieve.Sieve, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.GetDefaultLogger()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	codec, err := snapshot.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot codec: %w", err)
	}

	metrics, err := newServerMetrics(cfg.Registry)
	if err != nil {
		codec.Close()
		return nil, err
	}

	srv := &Server{
		sieve:   s,
		codec:   codec,
		logger:  cfg.Logger,
		metrics: metrics,
		started: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(srv.instrument())

	router.GET("/health", srv.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/primes", gzipResponses(), srv.handleRange)
		v1.GET("/primes/nth/:index", srv.handleNth)
		v1.GET("/primes/count", srv.handleCount)
		v1.GET("/primes/check/:value", srv.handleCheck)
		v1.GET("/primes/next/:value", srv.handleNext)
		v1.GET("/primes/prev/:value", srv.handlePrev)
		v1.GET("/primes/snapshot", srv.handleSnapshot)
		v1.GET("/stats", srv.handleStats)
	}
	srv.router = router

	return srv, nil
}

// Router returns the HTTP handler, for mounting or for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases server resources. It does not stop a listener; the
// caller owns the http.Server lifecycle.
func (s *Server) Close() {
	s.codec.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": s.sieve.BackendKind(),
		"bound":   s.sieve.Bound(),
		"primes":  s.sieve.Len(),
		"uptime":  time.Since(s.started).String(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.sieve.Stats()
	stats["uptime_seconds"] = time.Since(s.started).Seconds()
	c.JSON(http.StatusOK, stats)
}
