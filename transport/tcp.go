// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts inbound TCP connections. Qt applications speak
// QDataStream over plain TCP, optionally upgraded to TLS after a
// handshake; see peer.StartTLS.
type TCPListener struct {
	loop acceptLoop
}

// NewTCPListener creates a TCP listener on the specified address
// (e.g., ":4242" or "192.168.1.10:4242"). Use ":0" for a random
// available port. A nil logger discards log output.
func NewTCPListener(address string, logger *slog.Logger) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TCPListener{loop: acceptLoop{listener: listener, logger: logger}}, nil
}

// Serve accepts TCP connections and dispatches each to handler.
// Blocks until ctx is cancelled or Close is called.
func (l *TCPListener) Serve(ctx context.Context, handler ConnHandler) error {
	return l.loop.serve(ctx, handler)
}

// Address returns the TCP address in "host:port" format.
func (l *TCPListener) Address() string {
	return l.loop.listener.Addr().String()
}

// Close shuts down the TCP listener.
func (l *TCPListener) Close() error {
	return l.loop.close()
}

// TCPDialer opens TCP connections to Qt peers.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout; only the context
	// deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the given address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}
