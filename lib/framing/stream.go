// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"errors"
	"io"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// readChunkSize is the size of each read from the underlying source.
const readChunkSize = 32 * 1024

// StreamReader pulls bytes from an io.Reader through a [Reader] and
// returns decoded messages one at a time.
type StreamReader struct {
	source  io.Reader
	framer  *Reader
	chunk   []byte
	pending []datastream.Value
	err     error
}

// NewStreamReader returns a StreamReader reading from source.
func NewStreamReader(source io.Reader, framer *Reader) *StreamReader {
	return &StreamReader{
		source: source,
		framer: framer,
		chunk:  make([]byte, readChunkSize),
	}
}

// Next returns the next message. It returns io.EOF once the source is
// exhausted on a message boundary, a framing error when the source
// ends mid-message or carries a bad packet, and the source's own error
// unchanged for any other read failure. Messages decoded before an
// error are returned first.
func (s *StreamReader) Next() (datastream.Value, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		count, err := s.source.Read(s.chunk)
		if count > 0 {
			values, feedErr := s.framer.Feed(s.chunk[:count])
			s.pending = append(s.pending, values...)
			if feedErr != nil {
				s.err = feedErr
				continue
			}
		}
		switch {
		case errors.Is(err, io.EOF):
			if endErr := s.framer.End(); endErr != nil {
				s.err = endErr
			} else {
				s.err = io.EOF
			}
		case err != nil:
			s.err = err
		}
	}
	value := s.pending[0]
	s.pending = s.pending[1:]
	return value, nil
}

// Framer returns the Reader holding any partially received message.
func (s *StreamReader) Framer() *Reader {
	return s.framer
}
