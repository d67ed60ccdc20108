// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"errors"
	"io"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// Handlers receives the events of [Conn.Run]. Any field may be nil.
type Handlers struct {
	// OnMessage is called once per decoded message, in arrival order.
	OnMessage func(datastream.Value)

	// OnError is called with the error that ended the stream: a
	// framing error, or a transport error passed through unchanged.
	OnError func(error)

	// OnEnd is called when the peer closes its side on a message
	// boundary. A reset or any other transport error goes to OnError.
	OnEnd func()

	// OnClose is called last, after the transport has been closed.
	OnClose func()
}

// Run receives messages until the stream ends, ctx is cancelled, or a
// read fails, dispatching each event to handlers on the calling
// goroutine. The transport is closed before Run returns. No message is
// dispatched once ctx is done, including messages already buffered.
//
// Run returns nil when the peer ended the stream on a message boundary
// or ctx was cancelled. Any other error, including a transport error
// such as a connection reset, goes to OnError and is returned exactly
// as [Conn.Receive] produced it.
func (c *Conn) Run(ctx context.Context, handlers Handlers) error {
	// Closing the transport unblocks the pending Read.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	var err error
	for ctx.Err() == nil {
		var value datastream.Value
		value, err = c.Receive()
		if err != nil || ctx.Err() != nil {
			break
		}
		if handlers.OnMessage != nil {
			handlers.OnMessage(value)
		}
	}

	var result error
	switch {
	case ctx.Err() != nil:
		c.logger.Debug("connection cancelled", "error", err)
	case errors.Is(err, io.EOF):
		c.logger.Debug("connection ended")
		if handlers.OnEnd != nil {
			handlers.OnEnd()
		}
	default:
		c.logger.Debug("connection failed", "error", err)
		if handlers.OnError != nil {
			handlers.OnError(err)
		}
		result = err
	}

	_ = c.Close()
	c.logger.Debug("connection closed")
	if handlers.OnClose != nil {
		handlers.OnClose()
	}
	return result
}
