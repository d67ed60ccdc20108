// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*UnixListener)(nil)
	_ Dialer   = (*UnixDialer)(nil)
)

// UnixListener accepts connections on a Unix domain socket. Any stale
// socket file at the path is removed before listening, and the file is
// removed again on Close.
type UnixListener struct {
	path string
	loop acceptLoop
}

// NewUnixListener listens on the socket at path. A nil logger discards
// log output.
func NewUnixListener(path string, logger *slog.Logger) (*UnixListener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &UnixListener{path: path, loop: acceptLoop{listener: listener, logger: logger}}, nil
}

// Serve accepts connections and dispatches each to handler.
func (l *UnixListener) Serve(ctx context.Context, handler ConnHandler) error {
	return l.loop.serve(ctx, handler)
}

// Address returns "unix:" followed by the socket path.
func (l *UnixListener) Address() string {
	return unixPrefix + l.path
}

// Close shuts down the listener and removes the socket file.
func (l *UnixListener) Close() error {
	err := l.loop.close()
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = removeErr
	}
	return err
}

// UnixDialer connects to Unix domain sockets. Addresses are plain
// socket paths; [NetworkDialer] strips the "unix:" prefix.
type UnixDialer struct {
	Timeout time.Duration
}

// DialContext connects to the socket at path.
func (d *UnixDialer) DialContext(ctx context.Context, path string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "unix", path)
}
