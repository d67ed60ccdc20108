// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/peer"
	"github.com/bureau-foundation/qtstream/transport"
)

type listenParams struct {
	sessionParams
	outputParams
	Echo bool `flag:"echo" desc:"send every message back to the connection it arrived on"`
	Once bool `flag:"once" desc:"exit after the first connection closes"`
}

func listenCommand(env *Environment) *cli.Command {
	var params listenParams

	return &cli.Command{
		Name:    "listen",
		Summary: "Accept connections and print the messages peers send",
		Description: `Listen on <address> ("host:port" or "unix:/path", default: the
configured address) and print every message received on any connection.
Connections are served concurrently; each message is printed whole.

With --echo each message is sent back to its sender, which makes
"qtstream listen --echo" a test peer for client code. With a tls section
in the configuration every accepted connection must complete a TLS
handshake first.`,
		Usage: "qtstream listen [flags] [address]",
		Examples: []cli.Example{
			{
				Description: "Run an echo peer on a local port",
				Command:     "qtstream listen --echo 127.0.0.1:4242",
			},
			{
				Description: "Capture one client session as typed JSON lines",
				Command:     "qtstream listen --once --typed unix:/tmp/qt.sock > session.jsonl",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("listen takes at most one address, got %d arguments", len(args))
			}
			s, err := params.open(env, logger)
			if err != nil {
				return err
			}
			out, err := params.printer(env.Stdout)
			if err != nil {
				return err
			}
			address, err := s.address(args)
			if err != nil {
				return err
			}
			var serverTLS *tls.Config
			if s.config.TLS != nil {
				if serverTLS, err = s.config.ServerTLS(); err != nil {
					return err
				}
			}

			listener, err := transport.Listen(address, logger)
			if err != nil {
				return err
			}
			defer listener.Close()
			logger.Info("listening", "address", listener.Address(), "tls", serverTLS != nil)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			return listener.Serve(ctx, func(ctx context.Context, netConn net.Conn) {
				if params.Once {
					defer cancel()
				}
				serveConnection(ctx, netConn, s, serverTLS, out, params.Echo)
			})
		},
	}
}

// serveConnection prints the messages of one accepted connection until
// it ends.
func serveConnection(ctx context.Context, netConn net.Conn, s *session, serverTLS *tls.Config, out *printer, echo bool) {
	logger := s.logger.With("remote", remoteAddress(netConn))
	options := s.peerOptions()
	options.Logger = logger
	conn := peer.New(netConn, options)
	logger.Info("accepted connection")

	if serverTLS != nil {
		if err := conn.StartTLS(ctx, serverTLS, false); err != nil {
			logger.Warn("rejected connection", "error", err)
			conn.Close()
			return
		}
	}

	received := 0
	_ = conn.Run(ctx, peer.Handlers{
		OnMessage: func(value datastream.Value) {
			received++
			if err := out.print(value); err != nil {
				logger.Error("writing output failed", "error", err)
			}
			if echo {
				if err := conn.Send(value); err != nil {
					logger.Warn("echo failed", "error", err)
				}
			}
		},
		OnError: func(err error) {
			if transport.IsExpectedCloseError(err) {
				logger.Info("peer dropped the connection", "error", err)
				return
			}
			logger.Warn("connection failed", "error", err)
		},
		OnClose: func() { logger.Info("connection closed", "messages", received) },
	})
}

// remoteAddress names the peer for logs. Unix socket peers are
// usually unnamed.
func remoteAddress(conn net.Conn) string {
	if address := conn.RemoteAddr(); address != nil && address.String() != "" {
		return address.String()
	}
	return "local"
}
