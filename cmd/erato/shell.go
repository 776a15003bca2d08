package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/EratoDB/erato/pkg/sieve"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".stats"),
	readline.PcItem(".exit"),
	readline.PcItem("NTH"),
	readline.PcItem("PRIME"),
	readline.PcItem("RANGE"),
	readline.PcItem("COUNT"),
	readline.PcItem("PI"),
	readline.PcItem("NEXT"),
	readline.PcItem("PREV"),
	readline.PcItem("INDEX"),
	readline.PcItem("SLICE"),
	readline.PcItem("LIST"),
)

const helpText = `
Erato (erato) - An incremental prime sieve engine.

Usage:
  erato [options]         - Start in interactive mode

Options:
  -server                 - Run in server mode, exposing an HTTP API
  -address string         - Address to listen on in server mode (default "localhost:8080")
  -backend string         - Storage backend: dense or list (default "dense")
  -initial-bound uint     - Bound sieved eagerly at startup (default 2)
  -max-bound uint         - Cap on table growth, 0 for unlimited

Commands (interactive mode only):
  .help                   - Show this help message
  .stats                  - Show sieve statistics
  .exit                   - Exit the program

  NTH n                   - Show the n-th prime, 0-indexed (NTH 0 is 2)
  PRIME x                 - Check whether x is prime
  INDEX p                 - Show the position of a prime in the sequence

  RANGE lo hi             - List primes p with lo <= p < hi
  COUNT lo hi             - Count primes p with lo <= p < hi
  PI n                    - Count primes up to and including n
  SLICE start stop        - List primes by position, Python slice rules
  LIST n                  - List the first n primes

  NEXT x                  - Smallest prime strictly greater than x
  PREV x                  - Largest prime strictly less than x
`

// runInteractive starts the interactive CLI mode
func runInteractive(s *sieve.Sieve, appConfig Config) {
	fmt.Println("Erato (erato) version 1.0.0")
	fmt.Printf("Backend: %s, bound: %d\n", s.BackendKind(), s.Bound())
	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".erato_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "erato> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}
		if done := executeCommand(os.Stdout, s, line); done {
			fmt.Println("Goodbye!")
			break
		}
	}
}

// executeCommand runs a single shell command against the sieve and
// writes its output to w. Returns true when the shell should exit.
func executeCommand(w io.Writer, s *sieve.Sieve, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToUpper(parts[0])

	if strings.HasPrefix(cmd, ".") {
		switch strings.ToLower(cmd) {
		case ".help":
			fmt.Fprint(w, helpText)
		case ".stats":
			printStats(w, s)
		case ".exit", ".quit":
			return true
		default:
			fmt.Fprintf(w, "Unknown command: %s\n", parts[0])
		}
		return false
	}

	switch cmd {
	case "NTH":
		n, ok := argInt(w, parts, 1, "index")
		if !ok {
			return false
		}
		p, err := s.NthPrime(int(n))
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%d\n", p)

	case "PRIME":
		x, ok := argInt(w, parts, 1, "value")
		if !ok {
			return false
		}
		isPrime, err := s.IsPrime(x)
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%v\n", isPrime)

	case "INDEX":
		x, ok := argInt(w, parts, 1, "prime")
		if !ok {
			return false
		}
		if x < 0 {
			fmt.Fprintf(w, "Error: %d is not prime\n", x)
			return false
		}
		idx, err := s.IndexOf(uint64(x))
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%d\n", idx)

	case "RANGE":
		lo, ok := argInt(w, parts, 1, "lo")
		if !ok {
			return false
		}
		hi, ok := argInt(w, parts, 2, "hi")
		if !ok {
			return false
		}
		primes, err := s.PrimesInRange(lo, hi)
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		printPrimes(w, primes)

	case "COUNT":
		lo, ok := argInt(w, parts, 1, "lo")
		if !ok {
			return false
		}
		hi, ok := argInt(w, parts, 2, "hi")
		if !ok {
			return false
		}
		count, err := s.CountPrimesInRange(lo, hi)
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%d\n", count)

	case "PI":
		n, ok := argInt(w, parts, 1, "n")
		if !ok {
			return false
		}
		count, err := s.CountPrimesLessOrEqual(n)
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%d\n", count)

	case "NEXT":
		x, ok := argInt(w, parts, 1, "value")
		if !ok {
			return false
		}
		p, err := s.NextPrimeGreaterThan(x)
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%d\n", p)

	case "PREV":
		x, ok := argInt(w, parts, 1, "value")
		if !ok {
			return false
		}
		p, err := s.PrevPrimeLessThan(x)
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		fmt.Fprintf(w, "%d\n", p)

	case "SLICE":
		start, ok := argInt(w, parts, 1, "start")
		if !ok {
			return false
		}
		stop, ok := argInt(w, parts, 2, "stop")
		if !ok {
			return false
		}
		primes, err := s.Slice(int(start), int(stop))
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		printPrimes(w, primes)

	case "LIST":
		n, ok := argInt(w, parts, 1, "n")
		if !ok {
			return false
		}
		primes, err := s.Slice(0, int(n))
		if err != nil {
			fmt.Fprintf(w, "Error: %s\n", err)
			return false
		}
		printPrimes(w, primes)

	default:
		fmt.Fprintf(w, "Unknown command: %s\n", parts[0])
	}

	return false
}

// argInt reads the positional argument at idx as an int64.
func argInt(w io.Writer, parts []string, idx int, name string) (int64, bool) {
	if len(parts) <= idx {
		fmt.Fprintf(w, "Error: Missing %s argument\n", name)
		return 0, false
	}
	v, err := strconv.ParseInt(parts[idx], 10, 64)
	if err != nil {
		fmt.Fprintf(w, "Error: %s must be an integer\n", name)
		return 0, false
	}
	return v, true
}

func printPrimes(w io.Writer, primes []uint64) {
	if len(primes) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	strs := make([]string, len(primes))
	for i, p := range primes {
		strs[i] = strconv.FormatUint(p, 10)
	}
	fmt.Fprintf(w, "%s\n%d prime(s)\n", strings.Join(strs, " "), len(primes))
}

func printStats(w io.Writer, s *sieve.Sieve) {
	fmt.Fprintf(w, "Backend: %s\n", s.BackendKind())
	fmt.Fprintf(w, "Bound: %d\n", s.Bound())
	fmt.Fprintf(w, "Primes computed: %d\n", s.Len())

	stats := s.Stats()
	for _, key := range []string{"segments_sieved", "extend_ops", "nth_prime_ops", "is_prime_ops", "count_primes_ops"} {
		if v, ok := stats[key]; ok {
			fmt.Fprintf(w, "%s: %v\n", key, v)
		}
	}
}
