package snapshot

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/cespare/xxhash/v2"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Bound:  30,
		Primes: []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29},
	}
}

func TestRoundTrip(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionSnappy} {
		snap := testSnapshot()
		frame, err := codec.Encode(snap, compression)
		if err != nil {
			t.Fatalf("Encode with codec %d failed: %v", compression, err)
		}

		decoded, err := codec.Decode(frame)
		if err != nil {
			t.Fatalf("Decode with codec %d failed: %v", compression, err)
		}
		if decoded.Bound != snap.Bound {
			t.Errorf("Bound = %d, want %d", decoded.Bound, snap.Bound)
		}
		if len(decoded.Primes) != len(snap.Primes) {
			t.Fatalf("Decoded %d primes, want %d", len(decoded.Primes), len(snap.Primes))
		}
		for i := range snap.Primes {
			if decoded.Primes[i] != snap.Primes[i] {
				t.Errorf("Prime %d = %d, want %d", i, decoded.Primes[i], snap.Primes[i])
			}
		}
	}
}

func TestRoundTripEmpty(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	frame, err := codec.Encode(&Snapshot{Bound: 1}, CompressionZstd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := codec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Bound != 1 || len(decoded.Primes) != 0 {
		t.Errorf("Decoded bound %d with %d primes, want 1 and none", decoded.Bound, len(decoded.Primes))
	}
}

func TestZstdCompresses(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	// Small values in u64 slots are mostly zero bytes; the compressed
	// frame must come out well below the raw one.
	primes := make([]uint64, 10000)
	for i := range primes {
		primes[i] = uint64(2*i + 3)
	}
	snap := &Snapshot{Bound: primes[len(primes)-1], Primes: primes}

	raw, err := codec.Encode(snap, CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	compressed, err := codec.Encode(snap, CompressionZstd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(compressed) >= len(raw) {
		t.Errorf("ZSTD frame (%d bytes) not smaller than raw frame (%d bytes)", len(compressed), len(raw))
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	frame, err := codec.Encode(testSnapshot(), CompressionZstd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	t.Run("TruncatedFrame", func(t *testing.T) {
		if _, err := codec.Decode(frame[:headerSize-1]); !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("Expected ErrInvalidSnapshot, got %v", err)
		}
	})

	t.Run("BadMagic", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[0] = 'X'
		if _, err := codec.Decode(bad); !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("Expected ErrInvalidSnapshot, got %v", err)
		}
	})

	t.Run("BadVersion", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[4] = 99
		if _, err := codec.Decode(bad); !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("Expected ErrVersionMismatch, got %v", err)
		}
	})

	t.Run("FlippedPayloadBit", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[headerSize] ^= 0x01
		if _, err := codec.Decode(bad); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("Expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("FlippedChecksum", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0x01
		if _, err := codec.Decode(bad); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("Expected ErrChecksumMismatch, got %v", err)
		}
	})
}

// A frame can carry a valid checksum yet lie about its prime count; a
// huge count with no payload must fail the length check instead of
// overflowing it and panicking on allocation.
func TestDecodeRejectsImpossibleCount(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	defer codec.Close()

	for _, count := range []uint64{1, 1 << 32, 1 << 61, math.MaxUint64} {
		frame := make([]byte, headerSize+footerSize)
		copy(frame[0:4], Magic)
		binary.LittleEndian.PutUint16(frame[4:6], Version)
		frame[6] = byte(CompressionNone)
		binary.LittleEndian.PutUint64(frame[8:16], 100)
		binary.LittleEndian.PutUint64(frame[16:24], count)
		binary.LittleEndian.PutUint64(frame[headerSize:], xxhash.Sum64(frame[:headerSize]))

		_, err := codec.Decode(frame)
		if !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("Decode with count %d: expected ErrInvalidSnapshot, got %v", count, err)
		}
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name     string
		expected Compression
		wantErr  bool
	}{
		{"none", CompressionNone, false},
		{"zstd", CompressionZstd, false},
		{"snappy", CompressionSnappy, false},
		{"gzip", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseCompression(tc.name)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownCodec) {
				t.Errorf("ParseCompression(%q): expected ErrUnknownCodec, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCompression(%q) failed: %v", tc.name, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("ParseCompression(%q) = %d, want %d", tc.name, got, tc.expected)
		}
	}
}
