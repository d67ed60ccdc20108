// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm of a block. Tags
// are stored in block headers (1 byte each); changing the values
// breaks existing capture files.
type CompressionTag uint8

const (
	// CompressionNone stores the block as-is.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression. Fast, with a modest
	// ratio on the binary framing of most Qt protocols.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. QString payloads
	// are UTF-16 text with a zero byte in every other position for
	// Latin scripts, which zstd compresses several times over.
	CompressionZstd CompressionTag = 2
)

// String returns the name accepted by [ParseCompressionTag].
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a compression tag from its name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// errIncompressible is returned when the compressed form is not
// smaller than the input. The block is then stored uncompressed.
var errIncompressible = errors.New("data is incompressible")

// compressBlock compresses data with tag and returns the bytes to
// store along with the tag actually used.
func compressBlock(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	var (
		compressed []byte
		err        error
	)
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZstd:
		compressed, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression tag: %d", tag)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, tag, nil
}

// decompressBlock reverses compressBlock. The result must be exactly
// uncompressedSize bytes.
func decompressBlock(stored []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(stored) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed block: size %d does not match expected %d",
				len(stored), uncompressedSize)
		}
		return stored, nil
	case CompressionLZ4:
		return decompressLZ4(stored, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(stored, uncompressedSize)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use, so one of
// each serves every Writer and Reader.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("capture: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBlockSize))
	if err != nil {
		panic("capture: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}
