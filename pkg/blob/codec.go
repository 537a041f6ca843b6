package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm used for a stored blob. The tag is
// the first byte of every stored value, so these values are a storage format
// constant.
type Compression uint8

const (
	// CompressionNone stores bytes as-is.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 block compression. Fast, modest ratio.
	CompressionLZ4 Compression = 1

	// CompressionZstd uses zstd at the default level. Better ratio for
	// text-like content.
	CompressionZstd Compression = 2
)

// String returns the configuration name of c.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("blob: unknown compression %q", name)
	}
}

// errIncompressible signals that compression would not shrink the data.
var errIncompressible = errors.New("incompressible")

// maxBlobSize bounds the uncompressed length read from a frame header before
// allocating.
const maxBlobSize = math.MaxInt32

// Codec frames blobs for storage as
//
//	[tag:1][uncompressed length:uvarint][payload]
//
// Encode falls back to CompressionNone when the chosen algorithm does not
// reduce the size.
type Codec struct {
	Compression Compression
}

// Encode returns the framed form of data.
func (c Codec) Encode(data []byte) ([]byte, error) {
	tag := c.Compression
	payload, err := compress(data, tag)
	if errors.Is(err, errIncompressible) {
		tag, payload, err = CompressionNone, data, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1, 1+binary.MaxVarintLen64+len(payload))
	out[0] = byte(tag)
	out = binary.AppendUvarint(out, uint64(len(data)))
	return append(out, payload...), nil
}

// Decode reverses Encode. The tag in the frame decides the algorithm, so
// blobs written with one setting stay readable after the setting changes.
func (Codec) Decode(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, fmt.Errorf("blob: frame too short (%d bytes)", len(framed))
	}
	tag := Compression(framed[0])
	size, n := binary.Uvarint(framed[1:])
	if n <= 0 || size > maxBlobSize {
		return nil, errors.New("blob: corrupt frame header")
	}
	payload := framed[1+n:]
	return decompress(payload, tag, int(size))
}

func compress(data []byte, tag Compression) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("blob: unsupported compression %d", tag)
	}
}

func decompress(payload []byte, tag Compression, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("blob: stored size %d does not match header %d", len(payload), size)
		}
		out := make([]byte, size)
		copy(out, payload)
		return out, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("blob: lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("blob: lz4 produced %d bytes, want %d", n, size)
		}
		return out, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("blob: zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("blob: zstd produced %d bytes, want %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("blob: unsupported compression %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func compressZstd(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	out := zstdEncoder.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

// Shared zstd state. EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("blob: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("blob: zstd decoder initialization failed: " + err.Error())
	}
}
