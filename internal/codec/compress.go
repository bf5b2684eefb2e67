package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the cell blob compression.
type Compression uint8

const (
	// None stores cells raw.
	None Compression = 0
	// LZ4 is fast and suits hot, local data.
	LZ4 Compression = 1
	// ZSTD compresses better and suits object storage.
	ZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses the String form of a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

var (
	// ErrUnknownCompression is returned for unsupported compression names.
	ErrUnknownCompression = errors.New("codec: unknown compression")
	// ErrCorrupt is returned when a cell blob cannot be decoded.
	ErrCorrupt = errors.New("codec: corrupt cell blob")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// headerSize is the cell blob header:
// [UncompressedSize uint32][CompressedSize uint32], CompressedSize 0 = raw.
const headerSize = 8

// Compress encodes a cell. Data that does not shrink below 90% is stored
// raw, whatever c says.
func Compress(data []byte, c Compression) ([]byte, error) {
	var (
		packed []byte
		err    error
	)
	switch {
	case len(data) == 0, c == None:
	case c == LZ4:
		packed, err = compressLZ4(data)
	case c == ZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
	if err != nil {
		return nil, err
	}

	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		out := make([]byte, headerSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[headerSize:], data)
		return out, nil
	}

	out := make([]byte, headerSize+len(packed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	copy(out[headerSize:], packed)
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return buf[:n], nil
}

// DecodedSize returns the uncompressed size recorded in a cell blob header.
func DecodedSize(blob []byte) (int, error) {
	if len(blob) < headerSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(blob))
	}
	return int(binary.LittleEndian.Uint32(blob[0:])), nil
}

// Decompress decodes a cell blob written by Compress with the same c into
// dst, which must hold DecodedSize bytes. It returns the filled prefix.
func Decompress(dst, blob []byte, c Compression) ([]byte, error) {
	size, err := DecodedSize(blob)
	if err != nil {
		return nil, err
	}
	packedSize := int(binary.LittleEndian.Uint32(blob[4:]))
	if dst == nil || cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	if packedSize == 0 {
		if len(blob) < headerSize+size {
			return nil, fmt.Errorf("%w: raw payload truncated", ErrCorrupt)
		}
		copy(dst, blob[headerSize:headerSize+size])
		return dst, nil
	}
	if len(blob) < headerSize+packedSize {
		return nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
	}
	packed := blob[headerSize : headerSize+packedSize]

	switch c {
	case LZ4:
		n, err := lz4.UncompressBlock(packed, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		return dst, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(packed, dst[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}
