// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"io"
)

// Writer records a byte stream into the capture format. Bytes written
// are accumulated into blocks of the configured size, and each full
// block is compressed, hashed, and written to the destination.
// Block boundaries carry no meaning: a frame may span blocks.
//
// Writer is not safe for concurrent use. Errors are sticky.
type Writer struct {
	destination  io.Writer
	tag          CompressionTag
	blockSize    int
	buffer       []byte
	wroteHeader  bool
	closed       bool
	err          error
	blocks       int
	storedBytes  int64
	writtenBytes int64
}

// NewWriter returns a Writer that compresses blocks of blockSize bytes
// with tag. A blockSize of zero selects [DefaultBlockSize]; values
// above [MaxBlockSize] are clamped to it.
func NewWriter(destination io.Writer, tag CompressionTag, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize > MaxBlockSize {
		blockSize = MaxBlockSize
	}
	return &Writer{
		destination: destination,
		tag:         tag,
		blockSize:   blockSize,
		buffer:      make([]byte, 0, blockSize),
	}
}

// Write appends data to the capture, writing out any blocks it fills.
func (w *Writer) Write(data []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, fmt.Errorf("capture: write after close")
	}
	written := 0
	for len(data) > 0 {
		room := w.blockSize - len(w.buffer)
		take := min(room, len(data))
		w.buffer = append(w.buffer, data[:take]...)
		data = data[take:]
		written += take
		if len(w.buffer) == w.blockSize {
			if err := w.writeBlock(); err != nil {
				return written, err
			}
		}
	}
	w.writtenBytes += int64(written)
	return written, nil
}

// Flush writes any buffered bytes as a short block. Readers see
// flushed data even if the Writer is never closed.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	if len(w.buffer) == 0 {
		return nil
	}
	return w.writeBlock()
}

// Close flushes the Writer. It does not close the destination.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	err := w.Flush()
	w.closed = true
	return err
}

// Blocks returns the number of blocks written so far.
func (w *Writer) Blocks() int { return w.blocks }

// StoredBytes returns the number of bytes written to the destination,
// headers included.
func (w *Writer) StoredBytes() int64 { return w.storedBytes }

// WrittenBytes returns the number of bytes accepted by Write.
func (w *Writer) WrittenBytes() int64 { return w.writtenBytes }

func (w *Writer) writeHeader() error {
	if w.wroteHeader {
		return nil
	}
	header := append(magic[:], Version)
	if err := w.emit(header); err != nil {
		return err
	}
	w.wroteHeader = true
	return nil
}

func (w *Writer) writeBlock() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	stored, tag, err := compressBlock(w.buffer, w.tag)
	if err != nil {
		w.err = fmt.Errorf("capture: compressing block %d: %w", w.blocks, err)
		return w.err
	}
	header := blockHeader{
		tag:              tag,
		uncompressedSize: uint32(len(w.buffer)),
		storedSize:       uint32(len(stored)),
		hash:             hashBlock(w.buffer),
	}
	if err := w.emit(header.marshal()); err != nil {
		return err
	}
	if err := w.emit(stored); err != nil {
		return err
	}
	w.blocks++
	w.buffer = w.buffer[:0]
	return nil
}

func (w *Writer) emit(data []byte) error {
	written, err := w.destination.Write(data)
	w.storedBytes += int64(written)
	if err != nil {
		w.err = fmt.Errorf("capture: writing: %w", err)
		return w.err
	}
	return nil
}
