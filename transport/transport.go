// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnHandler serves one accepted connection. The connection is closed
// after the handler returns. ctx is cancelled when the listener shuts
// down, and handlers should return promptly when it is.
type ConnHandler func(ctx context.Context, conn net.Conn)

// Listener accepts inbound byte-stream connections from Qt peers.
type Listener interface {
	// Serve accepts connections and runs handler for each one on its
	// own goroutine. Blocks until ctx is cancelled or Close is called,
	// then waits for active handlers to return. Returns nil on clean
	// shutdown.
	Serve(ctx context.Context, handler ConnHandler) error

	// Address returns the address peers connect to, in the same form
	// Dial accepts ("127.0.0.1:4242" or "unix:/run/qt.sock").
	Address() string

	// Close stops accepting connections. A Serve in progress returns.
	Close() error
}

// Dialer opens outbound connections to Qt peers.
type Dialer interface {
	// DialContext opens a connection to address. The address format
	// matches what the peer's Listener.Address() returns.
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// unixPrefix marks an address as a Unix socket path.
const unixPrefix = "unix:"

// Listen creates a listener for address: a Unix socket when address
// starts with "unix:", otherwise TCP.
func Listen(address string, logger *slog.Logger) (Listener, error) {
	if path, ok := strings.CutPrefix(address, unixPrefix); ok {
		return NewUnixListener(path, logger)
	}
	return NewTCPListener(address, logger)
}

// NetworkDialer dials TCP or Unix addresses by the same rule as
// [Listen].
type NetworkDialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

var _ Dialer = (*NetworkDialer)(nil)

// DialContext connects to address.
func (d *NetworkDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	if path, ok := strings.CutPrefix(address, unixPrefix); ok {
		return (&UnixDialer{Timeout: d.Timeout}).DialContext(ctx, path)
	}
	return (&TCPDialer{Timeout: d.Timeout}).DialContext(ctx, address)
}

// acceptLoop is the Serve implementation shared by the TCP and Unix
// listeners.
type acceptLoop struct {
	listener net.Listener
	logger   *slog.Logger

	mutex   sync.Mutex
	cancel  context.CancelFunc
	closing bool
}

func (a *acceptLoop) serve(ctx context.Context, handler ConnHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mutex.Lock()
	if a.closing {
		a.mutex.Unlock()
		return nil
	}
	a.cancel = cancel
	a.mutex.Unlock()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()

	var activeConnections sync.WaitGroup
	var serveErr error
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				a.logger.Warn("accept failed, retrying", "error", err)
				continue
			}
			serveErr = err
			break
		}

		a.logger.Debug("accepted connection",
			"local", conn.LocalAddr().String(),
			"remote", conn.RemoteAddr().String(),
		)
		activeConnections.Add(1)
		go func() {
			defer activeConnections.Done()
			defer conn.Close()
			// Shutdown closes the connection so handlers blocked in
			// Read return.
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			handler(ctx, conn)
		}()
	}

	cancel()
	activeConnections.Wait()
	return serveErr
}

func (a *acceptLoop) close() error {
	a.mutex.Lock()
	a.closing = true
	cancel := a.cancel
	a.mutex.Unlock()
	if cancel != nil {
		cancel()
	}
	err := a.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
