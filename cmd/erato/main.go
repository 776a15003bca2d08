package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/EratoDB/erato/pkg/common/log"
	"github.com/EratoDB/erato/pkg/config"
	"github.com/EratoDB/erato/pkg/sieve"
)

// Config holds the application configuration
type Config struct {
	ServerMode   bool
	ListenAddr   string
	Backend      string
	InitialBound uint64
	MaxBound     uint64
	LogLevel     string
}

func main() {
	appConfig := parseFlags()

	logger := log.NewStandardLogger(
		log.WithLevel(log.ParseLevel(appConfig.LogLevel)),
	)

	backend, err := config.ParseBackend(appConfig.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cfg := config.NewDefaultConfig()
	cfg.Backend = backend
	cfg.InitialBound = appConfig.InitialBound
	cfg.MaxBound = appConfig.MaxBound

	if appConfig.ServerMode {
		runServer(cfg, appConfig, logger)
		return
	}

	s, err := sieve.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating sieve: %s\n", err)
		os.Exit(1)
	}
	runInteractive(s, appConfig)
}

// parseFlags parses command line flags and returns a Config
func parseFlags() Config {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Erato - An incremental prime sieve engine\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: erato [options]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "By default, erato runs in interactive mode with a command-line interface.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "If -server flag is provided, erato runs as a server exposing an HTTP API.\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nInteractive mode commands (when not using -server):\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  NTH n                   - Show the n-th prime (0-indexed)\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  PRIME x                 - Check whether x is prime\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  RANGE lo hi             - List primes p with lo <= p < hi\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  COUNT lo hi             - Count primes p with lo <= p < hi\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  PI n                    - Count primes up to and including n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  NEXT x / PREV x         - Neighboring primes of x\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  .help                   - Show detailed help\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  .exit                   - Exit the program\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "For more details, start erato and type .help\n")
	}

	serverMode := flag.Bool("server", false, "Run in server mode, exposing an HTTP API")
	listenAddr := flag.String("address", "localhost:8080", "Address to listen on in server mode")
	backend := flag.String("backend", string(config.BackendDense), "Storage backend: dense or list")
	initialBound := flag.Uint64("initial-bound", config.DefaultInitialBound, "Bound sieved eagerly at startup")
	maxBound := flag.Uint64("max-bound", 0, "Cap on table growth, 0 for unlimited")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	return Config{
		ServerMode:   *serverMode,
		ListenAddr:   *listenAddr,
		Backend:      *backend,
		InitialBound: *initialBound,
		MaxBound:     *maxBound,
		LogLevel:     *logLevel,
	}
}
