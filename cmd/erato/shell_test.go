package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/EratoDB/erato/pkg/config"
	"github.com/EratoDB/erato/pkg/sieve"
)

func newShellSieve(t *testing.T) *sieve.Sieve {
	t.Helper()
	s, err := sieve.New(config.NewDefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create sieve: %v", err)
	}
	return s
}

func runCommand(t *testing.T, s *sieve.Sieve, line string) string {
	t.Helper()
	var buf bytes.Buffer
	if done := executeCommand(&buf, s, line); done {
		t.Fatalf("Command %q requested exit", line)
	}
	return buf.String()
}

func TestExecuteCommandQueries(t *testing.T) {
	s := newShellSieve(t)

	tests := []struct {
		line     string
		expected string
	}{
		{"NTH 0", "2\n"},
		{"NTH 4", "11\n"},
		{"nth 4", "11\n"},
		{"PRIME 97", "true\n"},
		{"PRIME 100", "false\n"},
		{"PRIME -7", "false\n"},
		{"INDEX 11", "4\n"},
		{"PI 100", "25\n"},
		{"COUNT 3 8", "3\n"},
		{"NEXT 100", "101\n"},
		{"PREV 8", "7\n"},
		{"RANGE 10 20", "11 13 17 19\n4 prime(s)\n"},
		{"RANGE 14 16", "(none)\n"},
		{"SLICE 0 5", "2 3 5 7 11\n5 prime(s)\n"},
		{"LIST 3", "2 3 5\n3 prime(s)\n"},
	}

	for _, tc := range tests {
		if got := runCommand(t, s, tc.line); got != tc.expected {
			t.Errorf("%q output = %q, want %q", tc.line, got, tc.expected)
		}
	}
}

func TestExecuteCommandErrors(t *testing.T) {
	s := newShellSieve(t)

	tests := []struct {
		line string
		want string
	}{
		{"NTH", "Missing index argument"},
		{"NTH x", "index must be an integer"},
		{"NTH -1", "negative"},
		{"PREV 2", "no prime"},
		{"INDEX 10", "not prime"},
		{"RANGE 10", "Missing hi argument"},
		{"FROBNICATE", "Unknown command"},
		{".bogus", "Unknown command"},
	}

	for _, tc := range tests {
		got := runCommand(t, s, tc.line)
		if !strings.Contains(got, tc.want) {
			t.Errorf("%q output = %q, want it to mention %q", tc.line, got, tc.want)
		}
	}
}

func TestExecuteCommandDotCommands(t *testing.T) {
	s := newShellSieve(t)

	if got := runCommand(t, s, ".help"); !strings.Contains(got, "NTH n") {
		t.Errorf(".help output missing command reference: %q", got)
	}

	if _, err := s.NthPrime(10); err != nil {
		t.Fatalf("NthPrime failed: %v", err)
	}
	got := runCommand(t, s, ".stats")
	if !strings.Contains(got, "Backend: dense") || !strings.Contains(got, "Primes computed:") {
		t.Errorf(".stats output = %q", got)
	}

	var buf bytes.Buffer
	if done := executeCommand(&buf, s, ".exit"); !done {
		t.Error(".exit did not request exit")
	}
}
