// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/framing"
	"github.com/bureau-foundation/qtstream/transport"
)

// ErrNoTransport is returned by Receive and Send while the connection
// has no transport attached.
var ErrNoTransport = errors.New("peer: no transport attached")

// readChunkSize is the size of each read from the transport.
const readChunkSize = 32 * 1024

// Options configures a [Conn].
type Options struct {
	// Registry resolves user types in both directions. Nil means no
	// user types are known.
	Registry *datastream.Registry

	// Shape is the layout of every incoming message body. The zero
	// value is [datastream.VariantShape].
	Shape datastream.Shape

	// Raw disables length prefixes. Each Send writes a bare body and
	// each transport Read is taken as exactly one body, which suits
	// message-oriented transports only.
	Raw bool

	// Logger receives connection lifecycle and per-packet debug
	// records. Nil discards them.
	Logger *slog.Logger

	// MaxPacketSize overrides [framing.MaxPacketSize] when positive.
	MaxPacketSize int
}

// Conn exchanges QDataStream messages with a Qt peer over a byte
// transport. Receive delivers whole decoded messages regardless of how
// the transport chunks bytes; Send writes one message per call and is
// safe for concurrent use. Only one goroutine may call Receive at a
// time.
//
// The transport can be swapped while the connection is idle (for
// example to promote it to TLS) without losing a partially received
// message.
type Conn struct {
	logger  *slog.Logger
	raw     bool
	decoder *datastream.Decoder
	shape   datastream.Shape

	transportMutex sync.RWMutex
	transport      io.ReadWriteCloser

	writer *framing.Writer

	readMutex sync.Mutex
	framer    *framing.Reader
	chunk     []byte
	pending   []datastream.Value
	readErr   error
}

// New returns a Conn speaking over rwc. rwc may be nil, in which case
// a transport must be attached with SetTransport before use.
func New(rwc io.ReadWriteCloser, options Options) *Conn {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	decoder := datastream.NewDecoder(options.Registry)
	mode := framing.Framed
	if options.Raw {
		mode = framing.Raw
	}

	c := &Conn{
		logger:  logger,
		raw:     options.Raw,
		decoder: decoder,
		shape:   options.Shape,
		chunk:   make([]byte, readChunkSize),
		framer: framing.NewReader(decoder, options.Shape,
			framing.WithLogger(logger),
			framing.WithMaxPacketSize(options.MaxPacketSize),
		),
	}
	c.writer = framing.NewWriter(transportWriter{c}, datastream.NewEncoder(options.Registry), mode)
	if rwc != nil {
		c.SetTransport(rwc)
	}
	return c
}

// Dial connects to address with dialer and returns a Conn over the new
// connection.
func Dial(ctx context.Context, dialer transport.Dialer, address string, options Options) (*Conn, error) {
	conn, err := dialer.DialContext(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return New(conn, options), nil
}

// transportWriter resolves the current transport on every write so
// that the framing.Writer follows SetTransport.
type transportWriter struct {
	conn *Conn
}

func (w transportWriter) Write(data []byte) (int, error) {
	rwc := w.conn.Transport()
	if rwc == nil {
		return 0, ErrNoTransport
	}
	return rwc.Write(data)
}

// Transport returns the attached transport, or nil.
func (c *Conn) Transport() io.ReadWriteCloser {
	c.transportMutex.RLock()
	defer c.transportMutex.RUnlock()
	return c.transport
}

// SetTransport attaches rwc, replacing any current transport without
// closing it. Buffered bytes of a partially received message are kept
// and completed from the new transport.
func (c *Conn) SetTransport(rwc io.ReadWriteCloser) {
	c.transportMutex.Lock()
	defer c.transportMutex.Unlock()
	c.logger.Debug("updating transport")
	c.transport = rwc
}

// RemoveTransport detaches and returns the current transport without
// closing it.
func (c *Conn) RemoveTransport() io.ReadWriteCloser {
	c.transportMutex.Lock()
	defer c.transportMutex.Unlock()
	c.logger.Debug("removing transport")
	rwc := c.transport
	c.transport = nil
	return rwc
}

// Send encodes v and writes it as one message. v is a
// [datastream.Value] or a native Go value accepted by
// [datastream.ValueOf].
func (c *Conn) Send(v any) error {
	return c.writer.Write(v)
}

// Receive returns the next message from the peer. It returns io.EOF
// when the peer closed its side on a message boundary, and a framing
// error when the stream ended mid-message or carried a bad packet;
// both are final. Transport read errors are returned unchanged and do
// not end the stream, so a caller may attach a new transport and
// continue.
func (c *Conn) Receive() (datastream.Value, error) {
	c.readMutex.Lock()
	defer c.readMutex.Unlock()

	for len(c.pending) == 0 {
		if c.readErr != nil {
			return nil, c.readErr
		}
		rwc := c.Transport()
		if rwc == nil {
			return nil, ErrNoTransport
		}

		count, err := rwc.Read(c.chunk)
		if count > 0 {
			c.accept(c.chunk[:count])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			c.logger.Debug("end of stream", "packets", c.framer.Packets())
			if endErr := c.framer.End(); endErr != nil {
				c.readErr = endErr
			} else {
				c.readErr = io.EOF
			}
			continue
		}
		if len(c.pending) > 0 {
			// Deliver what arrived first; the error surfaces on the
			// next read.
			break
		}
		return nil, err
	}

	value := c.pending[0]
	c.pending = c.pending[1:]
	return value, nil
}

// accept hands a chunk to the framer, or decodes it whole in raw mode.
func (c *Conn) accept(chunk []byte) {
	if c.raw {
		value, remainder, err := c.decoder.Decode(chunk, c.shape)
		switch {
		case err != nil:
			c.readErr = err
		case len(remainder) > 0:
			c.readErr = fmt.Errorf("%w: %d of %d bytes unread", framing.ErrTrailingBytes, len(remainder), len(chunk))
		default:
			c.pending = append(c.pending, value)
		}
		return
	}
	values, err := c.framer.Feed(chunk)
	c.pending = append(c.pending, values...)
	if err != nil {
		c.logger.Debug("framing failed", "error", err)
		c.readErr = err
	}
}

// Close closes the attached transport.
func (c *Conn) Close() error {
	rwc := c.Transport()
	if rwc == nil {
		return nil
	}
	c.logger.Debug("closing transport")
	return rwc.Close()
}
