// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/binary"
	"errors"

	"github.com/zeebo/blake3"
)

// magic opens every capture file, followed by a version byte.
var magic = [7]byte{'Q', 'T', 'S', 'C', 'A', 'P', 0}

// Version is the capture format version this package reads and writes.
const Version = 1

const (
	// DefaultBlockSize is the uncompressed block size used when
	// NewWriter is given zero.
	DefaultBlockSize = 1 << 20

	// MaxBlockSize bounds the uncompressed length of one block. A
	// header claiming more is treated as corrupt so that a damaged
	// file cannot force a huge allocation.
	MaxBlockSize = 64 << 20

	fileHeaderLength  = len(magic) + 1
	hashLength        = 32
	blockHeaderLength = 1 + 4 + 4 + hashLength
)

var (
	// ErrNotCapture is returned when a file does not start with the
	// capture magic.
	ErrNotCapture = errors.New("capture: not a capture file")

	// ErrUnsupportedVersion is returned for a capture file written by
	// a newer format version.
	ErrUnsupportedVersion = errors.New("capture: unsupported format version")

	// ErrCorruptBlock is returned when a block header is malformed, a
	// block is cut short, or its contents do not match the stored
	// hash.
	ErrCorruptBlock = errors.New("capture: corrupt block")
)

// blockDomainKey keys the BLAKE3 hash of each block's uncompressed
// bytes: the ASCII domain name zero-padded to 32 bytes.
var blockDomainKey = [32]byte{
	'q', 't', 's', 't', 'r', 'e', 'a', 'm', '.', 'c', 'a', 'p', 't', 'u', 'r', 'e',
	'.', 'b', 'l', 'o', 'c', 'k', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func hashBlock(data []byte) [hashLength]byte {
	hasher, err := blake3.NewKeyed(blockDomainKey[:])
	if err != nil {
		panic("capture: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var result [hashLength]byte
	hasher.Sum(result[:0])
	return result
}

// blockHeader precedes the stored bytes of each block.
type blockHeader struct {
	tag              CompressionTag
	uncompressedSize uint32
	storedSize       uint32
	hash             [hashLength]byte
}

func (h blockHeader) marshal() []byte {
	buffer := make([]byte, blockHeaderLength)
	buffer[0] = byte(h.tag)
	binary.BigEndian.PutUint32(buffer[1:5], h.uncompressedSize)
	binary.BigEndian.PutUint32(buffer[5:9], h.storedSize)
	copy(buffer[9:], h.hash[:])
	return buffer
}

func parseBlockHeader(buffer []byte) blockHeader {
	var header blockHeader
	header.tag = CompressionTag(buffer[0])
	header.uncompressedSize = binary.BigEndian.Uint32(buffer[1:5])
	header.storedSize = binary.BigEndian.Uint32(buffer[5:9])
	copy(header.hash[:], buffer[9:])
	return header
}
