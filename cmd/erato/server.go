package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/EratoDB/erato/pkg/common/log"
	"github.com/EratoDB/erato/pkg/config"
	"github.com/EratoDB/erato/pkg/server"
	"github.com/EratoDB/erato/pkg/sieve"
	"github.com/EratoDB/erato/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// runServer runs the HTTP API until interrupted.
func runServer(cfg *config.Config, appConfig Config, logger log.Logger) {
	registry := prometheus.NewRegistry()

	// Engine metrics land in the same registry as the request metrics,
	// so /metrics shows both.
	tel, err := telemetry.New(telemetry.Config{
		Enabled:     true,
		ServiceName: "erato",
		Registerer:  registry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating telemetry: %s\n", err)
		os.Exit(1)
	}

	s, err := sieve.New(cfg, sieve.WithTelemetry(tel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating sieve: %s\n", err)
		os.Exit(1)
	}

	srv, err := server.New(s, server.Config{
		ListenAddr: appConfig.ListenAddr,
		Logger:     logger,
		Registry:   registry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %s\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    appConfig.ListenAddr,
		Handler: srv.Router(),
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("Received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error: %s", err)
		}
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Telemetry shutdown error: %s", err)
		}
		close(done)
	}()

	logger.Info("Erato server listening on %s (backend %s)", appConfig.ListenAddr, s.BackendKind())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error serving: %s\n", err)
		os.Exit(1)
	}
	<-done
}
