// Package snapshot encodes the state of a sieve into a compact,
// checksummed binary frame for bulk transfer, and decodes such frames
// back. Frames are self-describing: header, compressed prime payload,
// checksum footer.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

const (
	// Magic identifies a snapshot frame.
	Magic = "ERSN"

	// Version is the current frame format version.
	Version uint16 = 1

	// headerSize is magic(4) + version(2) + codec(1) + reserved(1) +
	// bound(8) + count(8).
	headerSize = 24

	// footerSize holds the xxhash64 of header and payload.
	footerSize = 8
)

// Compression selects the payload codec.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionSnappy
)

// ParseCompression converts a codec name into a Compression value.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "snappy":
		return CompressionSnappy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

var (
	// ErrInvalidSnapshot is returned when a frame is malformed
	ErrInvalidSnapshot = errors.New("invalid snapshot frame")

	// ErrChecksumMismatch is returned when a frame fails verification
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

	// ErrVersionMismatch is returned for an unsupported frame version
	ErrVersionMismatch = errors.New("unsupported snapshot version")

	// ErrUnknownCodec is returned for an unsupported compression codec
	ErrUnknownCodec = errors.New("unknown compression codec")
)

// Snapshot is the decoded state carried by a frame.
type Snapshot struct {
	// Bound is the largest integer with final primality in the source
	// table.
	Bound uint64

	// Primes holds every prime up to Bound, in order.
	Primes []uint64
}

// Codec compresses and decompresses snapshot frames. Safe for
// concurrent use.
type Codec struct {
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder

	mu sync.Mutex
}

// NewCodec creates a codec with initialized compressors.
func NewCodec() (*Codec, error) {
	zstdEncoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZSTD encoder: %w", err)
	}

	zstdDecoder, err := zstd.NewReader(nil)
	if err != nil {
		zstdEncoder.Close()
		return nil, fmt.Errorf("failed to create ZSTD decoder: %w", err)
	}

	return &Codec{
		zstdEncoder: zstdEncoder,
		zstdDecoder: zstdDecoder,
	}, nil
}

// Close releases the compressor resources.
func (c *Codec) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.zstdEncoder != nil {
		c.zstdEncoder.Close()
		c.zstdEncoder = nil
	}
	if c.zstdDecoder != nil {
		c.zstdDecoder.Close()
		c.zstdDecoder = nil
	}
}

// Encode builds a frame for the given table state.
func (c *Codec) Encode(snap *Snapshot, compression Compression) ([]byte, error) {
	payload := make([]byte, 8*len(snap.Primes))
	for i, p := range snap.Primes {
		binary.LittleEndian.PutUint64(payload[8*i:], p)
	}

	compressed, err := c.compress(payload, compression)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, headerSize+len(compressed)+footerSize)
	copy(frame[0:4], Magic)
	binary.LittleEndian.PutUint16(frame[4:6], Version)
	frame[6] = byte(compression)
	frame[7] = 0
	binary.LittleEndian.PutUint64(frame[8:16], snap.Bound)
	binary.LittleEndian.PutUint64(frame[16:24], uint64(len(snap.Primes)))
	copy(frame[headerSize:], compressed)

	checksum := xxhash.Sum64(frame[:headerSize+len(compressed)])
	binary.LittleEndian.PutUint64(frame[headerSize+len(compressed):], checksum)

	return frame, nil
}

// Decode verifies and unpacks a frame.
func (c *Codec) Decode(frame []byte) (*Snapshot, error) {
	if len(frame) < headerSize+footerSize {
		return nil, fmt.Errorf("%w: %d bytes is below the minimum frame size", ErrInvalidSnapshot, len(frame))
	}
	if string(frame[0:4]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	if version := binary.LittleEndian.Uint16(frame[4:6]); version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrVersionMismatch, version)
	}

	body := frame[:len(frame)-footerSize]
	expected := binary.LittleEndian.Uint64(frame[len(frame)-footerSize:])
	if actual := xxhash.Sum64(body); actual != expected {
		return nil, fmt.Errorf("%w: expected %016x, got %016x", ErrChecksumMismatch, expected, actual)
	}

	compression := Compression(frame[6])
	bound := binary.LittleEndian.Uint64(frame[8:16])
	count := binary.LittleEndian.Uint64(frame[16:24])

	payload, err := c.decompress(body[headerSize:], compression)
	if err != nil {
		return nil, err
	}
	// Bound the count before multiplying, so a hostile header cannot
	// overflow the length check or oversize the allocation.
	if count > uint64(len(payload))/8 || uint64(len(payload)) != 8*count {
		return nil, fmt.Errorf("%w: payload holds %d bytes for %d primes", ErrInvalidSnapshot, len(payload), count)
	}

	primes := make([]uint64, count)
	for i := range primes {
		primes[i] = binary.LittleEndian.Uint64(payload[8*i:])
	}

	return &Snapshot{Bound: bound, Primes: primes}, nil
}

func (c *Codec) compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.zstdEncoder.EncodeAll(data, nil), nil

	case CompressionSnappy:
		return snappy.Encode(nil, data), nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, compression)
	}
}

func (c *Codec) decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		c.mu.Lock()
		defer c.mu.Unlock()
		result, err := c.zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		return result, nil

	case CompressionSnappy:
		result, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, compression)
	}
}
