// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// Mode selects whether a [Writer] adds the length prefix.
type Mode uint8

const (
	// Framed writes the 4-byte big-endian body length before each body.
	Framed Mode = iota

	// Raw writes bodies only. Use it when an outer layer already
	// delimits messages.
	Raw
)

func (m Mode) String() string {
	if m == Raw {
		return "raw"
	}
	return "framed"
}

// Writer encodes values and writes each one to the destination in a
// single Write call, so messages from concurrent callers never
// interleave.
type Writer struct {
	mutex       sync.Mutex
	destination io.Writer
	encoder     *datastream.Encoder
	mode        Mode
}

// NewWriter returns a Writer that encodes with encoder.
func NewWriter(destination io.Writer, encoder *datastream.Encoder, mode Mode) *Writer {
	return &Writer{destination: destination, encoder: encoder, mode: mode}
}

// Write encodes v as one message. v is a [datastream.Value] or a
// native Go value accepted by [datastream.ValueOf].
func (w *Writer) Write(v any) error {
	var message []byte
	var err error
	if w.mode == Raw {
		message, err = w.encoder.Encode(v)
	} else {
		message, err = w.encoder.EncodeFramed(v)
	}
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return w.WriteEncoded(message)
}

// WriteEncoded writes bytes that are already a complete message in
// this Writer's mode.
func (w *Writer) WriteEncoded(message []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, err := w.destination.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// SetDestination swaps the underlying writer. Writes in progress
// finish on the old destination.
func (w *Writer) SetDestination(destination io.Writer) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.destination = destination
}

// Mode returns the Writer's framing mode.
func (w *Writer) Mode() Mode {
	return w.mode
}
