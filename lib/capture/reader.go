// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Reader reads back the byte stream recorded by a [Writer], verifying
// each block against its stored hash before returning any of its
// bytes. Errors are sticky.
type Reader struct {
	source     io.Reader
	readHeader bool
	block      []byte
	blocks     int
	err        error
}

// NewReader returns a Reader over the capture file in source. The file
// header is checked on the first Read.
func NewReader(source io.Reader) *Reader {
	return &Reader{source: source}
}

// Read implements io.Reader over the concatenated contents of every
// block. It returns io.EOF after the last block.
func (r *Reader) Read(buffer []byte) (int, error) {
	for len(r.block) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.err = r.next()
	}
	count := copy(buffer, r.block)
	r.block = r.block[count:]
	return count, nil
}

// Blocks returns the number of blocks verified so far.
func (r *Reader) Blocks() int { return r.blocks }

func (r *Reader) next() error {
	if !r.readHeader {
		if err := r.checkFileHeader(); err != nil {
			return err
		}
		r.readHeader = true
	}

	headerBytes := make([]byte, blockHeaderLength)
	if _, err := io.ReadFull(r.source, headerBytes); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return r.corrupt("reading header: %w", err)
	}
	header := parseBlockHeader(headerBytes)
	if header.uncompressedSize > MaxBlockSize || header.storedSize > MaxBlockSize {
		return r.corrupt("header claims %d bytes (%d stored), limit %d",
			header.uncompressedSize, header.storedSize, MaxBlockSize)
	}

	stored := make([]byte, header.storedSize)
	if _, err := io.ReadFull(r.source, stored); err != nil {
		return r.corrupt("reading %d stored bytes: %w", header.storedSize, err)
	}
	data, err := decompressBlock(stored, header.tag, int(header.uncompressedSize))
	if err != nil {
		return r.corrupt("%w", err)
	}
	if hashBlock(data) != header.hash {
		return r.corrupt("hash mismatch")
	}
	r.blocks++
	r.block = data
	return nil
}

func (r *Reader) checkFileHeader() error {
	header := make([]byte, fileHeaderLength)
	if _, err := io.ReadFull(r.source, header); err != nil {
		return fmt.Errorf("%w: reading file header: %w", ErrNotCapture, err)
	}
	if !bytes.Equal(header[:len(magic)], magic[:]) {
		return ErrNotCapture
	}
	if version := header[len(magic)]; version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return nil
}

func (r *Reader) corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: block %d: %w", ErrCorruptBlock, r.blocks, fmt.Errorf(format, args...))
}
