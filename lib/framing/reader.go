// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// MaxPacketSize is the largest body length accepted by default:
// 64 MiB. Larger declared lengths are a protocol violation.
const MaxPacketSize = 64 << 20

// prefixLength is the size of the big-endian body length in front of
// every message.
const prefixLength = 4

var (
	// ErrOversizedPacket reports a length prefix above the packet limit.
	ErrOversizedPacket = errors.New("oversized packet")

	// ErrTruncatedStream reports a stream that ended inside a message.
	ErrTruncatedStream = errors.New("stream ended in the middle of a packet")

	// ErrTrailingBytes reports a body with bytes left over after its
	// top-level value.
	ErrTrailingBytes = errors.New("packet body has trailing bytes")
)

// State is the position of a [Reader] within the current message.
type State uint8

const (
	// AwaitingLength means fewer than four bytes of the next message
	// have arrived.
	AwaitingLength State = iota

	// AwaitingBody means the length prefix is known and the body is
	// still incomplete.
	AwaitingBody
)

func (s State) String() string {
	switch s {
	case AwaitingLength:
		return "awaiting-length"
	case AwaitingBody:
		return "awaiting-body"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ReaderOption configures a [Reader].
type ReaderOption func(*Reader)

// WithLogger sets the logger that receives per-message debug records.
// The default discards them.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress registers a callback invoked whenever a chunk leaves a
// message incomplete, and once more when it completes. received counts
// the bytes of the current message buffered so far, length prefix
// included; size is the declared body length.
func WithProgress(progress func(received, size int)) ReaderOption {
	return func(r *Reader) { r.progress = progress }
}

// WithMaxPacketSize overrides [MaxPacketSize]. Values below one are
// ignored.
func WithMaxPacketSize(limit int) ReaderOption {
	return func(r *Reader) {
		if limit > 0 {
			r.maxPacketSize = limit
		}
	}
}

// Reader turns arbitrarily chunked bytes into decoded messages. A
// Reader serves one stream and is not safe for concurrent use; the
// [datastream.Decoder] it uses may be shared.
type Reader struct {
	decoder       *datastream.Decoder
	shape         datastream.Shape
	logger        *slog.Logger
	progress      func(received, size int)
	maxPacketSize int

	buffer  []byte
	packets int
	err     error
}

// NewReader returns a Reader that decodes each message body as shape.
func NewReader(decoder *datastream.Decoder, shape datastream.Shape, options ...ReaderOption) *Reader {
	r := &Reader{
		decoder:       decoder,
		shape:         shape,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxPacketSize: MaxPacketSize,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Feed appends chunk to the buffered bytes and returns every message
// that is now complete, in order. When a message fails, the values
// decoded before it in the same call are returned along with the
// error, and every later call returns the same error.
func (r *Reader) Feed(chunk []byte) ([]datastream.Value, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.buffer = append(r.buffer, chunk...)

	var values []datastream.Value
	consumed := 0
	for {
		pending := r.buffer[consumed:]
		if len(pending) < prefixLength {
			break
		}
		size := binary.BigEndian.Uint32(pending)
		if uint64(size) > uint64(r.maxPacketSize) {
			r.err = fmt.Errorf("packet %d: %w: declared %d bytes, limit %d", r.packets, ErrOversizedPacket, size, r.maxPacketSize)
			r.buffer = nil
			return values, r.err
		}
		total := prefixLength + int(size)
		if len(pending) < total {
			r.logger.Debug("waiting for end of packet",
				"packet", r.packets,
				"received", len(pending),
				"total", total,
			)
			r.report(len(pending), int(size))
			break
		}

		value, err := r.decode(pending[prefixLength:total])
		if err != nil {
			r.err = fmt.Errorf("packet %d: %w", r.packets, err)
			r.buffer = nil
			return values, r.err
		}
		r.logger.Debug("received packet",
			"packet", r.packets,
			"size", size,
			"type", value.Type().String(),
		)
		r.report(total, int(size))
		values = append(values, value)
		consumed += total
		r.packets++
	}

	// Keep only the start of the next message. Decoded values never
	// alias the buffer, so it can be compacted in place.
	remaining := copy(r.buffer, r.buffer[consumed:])
	r.buffer = r.buffer[:remaining]
	return values, nil
}

func (r *Reader) decode(body []byte) (datastream.Value, error) {
	value, remainder, err := r.decoder.Decode(body, r.shape)
	if err != nil {
		return nil, err
	}
	if len(remainder) > 0 {
		return nil, fmt.Errorf("%w: %d of %d bytes unread", ErrTrailingBytes, len(remainder), len(body))
	}
	return value, nil
}

func (r *Reader) report(received, size int) {
	if r.progress != nil {
		r.progress(received, size)
	}
}

// End tells the Reader that no more bytes will arrive. It returns
// ErrTruncatedStream when part of a message is buffered, the sticky
// error when the stream had already failed, and nil on a clean end.
func (r *Reader) End() error {
	if r.err != nil {
		return r.err
	}
	if len(r.buffer) > 0 {
		r.err = fmt.Errorf("packet %d: %w (%d bytes buffered)", r.packets, ErrTruncatedStream, len(r.buffer))
		r.buffer = nil
		return r.err
	}
	return nil
}

// Buffered returns the number of bytes held for the incomplete
// message.
func (r *Reader) Buffered() int {
	return len(r.buffer)
}

// State reports whether the Reader is waiting for a length prefix or
// for the rest of a body.
func (r *Reader) State() State {
	if len(r.buffer) < prefixLength {
		return AwaitingLength
	}
	return AwaitingBody
}

// Err returns the error that terminated the stream, if any.
func (r *Reader) Err() error {
	return r.err
}

// Packets returns the number of messages decoded so far.
func (r *Reader) Packets() int {
	return r.packets
}
