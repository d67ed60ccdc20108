// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/qtstream/lib/config"
	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/framing"
	"github.com/bureau-foundation/qtstream/lib/peer"
	"github.com/bureau-foundation/qtstream/transport"
)

// sessionParams are the flags shared by every command that reads or
// writes messages. Embed it in a command's params struct.
type sessionParams struct {
	Config        string `flag:"config" desc:"configuration file (default: $QTSTREAM_CONFIG)"`
	Shape         string `flag:"shape" desc:"message body layout: variant, a type name, or user:<Name> (overrides the config)"`
	Raw           bool   `flag:"raw" desc:"messages carry no length prefix"`
	MaxPacketSize int    `flag:"max-packet-size" desc:"largest accepted message body in bytes (overrides the config)"`
	Verbose       bool   `flag:"verbose,v" desc:"log debug records"`
}

// session is the protocol a command speaks, resolved from the
// configuration file and the session flags.
type session struct {
	config        *config.Config
	registry      *datastream.Registry
	shape         datastream.Shape
	raw           bool
	maxPacketSize int
	logger        *slog.Logger
}

// open resolves the session. Without --config or QTSTREAM_CONFIG the
// session has no user types and decodes variants.
func (p *sessionParams) open(env *Environment, logger *slog.Logger) (*session, error) {
	if p.Verbose && env.Level != nil {
		env.Level.Set(slog.LevelDebug)
	}

	cfg := &config.Config{}
	path := p.Config
	if path == "" {
		path = env.getenv(config.EnvironmentVariable)
	}
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		logger.Debug("loaded configuration", "path", path, "types", len(cfg.Types))
	}
	if p.Shape != "" {
		cfg.Shape = p.Shape
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	shape, err := cfg.MessageShape()
	if err != nil {
		return nil, err
	}
	maxPacketSize := cfg.MaxPacketSize
	if p.MaxPacketSize > 0 {
		maxPacketSize = p.MaxPacketSize
	}
	return &session{
		config:        cfg,
		registry:      registry,
		shape:         shape,
		raw:           p.Raw || cfg.Raw,
		maxPacketSize: maxPacketSize,
		logger:        logger,
	}, nil
}

// framer returns a Reader for one stream of this session's messages.
func (s *session) framer() *framing.Reader {
	return framing.NewReader(datastream.NewDecoder(s.registry), s.shape,
		framing.WithLogger(s.logger),
		framing.WithMaxPacketSize(s.maxPacketSize),
		framing.WithProgress(func(received, size int) {
			s.logger.Debug("receiving message", "received", received, "size", size)
		}),
	)
}

func (s *session) peerOptions() peer.Options {
	return peer.Options{
		Registry:      s.registry,
		Shape:         s.shape,
		Raw:           s.raw,
		Logger:        s.logger,
		MaxPacketSize: s.maxPacketSize,
	}
}

// address returns the positional address, or the configured one.
func (s *session) address(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if s.config.Address != "" {
		return s.config.Address, nil
	}
	return "", fmt.Errorf("no address given and none configured")
}

// dial connects to address and, when the configuration has a tls
// section, upgrades the connection before returning it.
func (s *session) dial(ctx context.Context, address string, timeout time.Duration) (*peer.Conn, error) {
	conn, err := peer.Dial(ctx, &transport.NetworkDialer{Timeout: timeout}, address, s.peerOptions())
	if err != nil {
		return nil, err
	}
	if s.config.TLS != nil {
		tlsConfig, err := s.config.ClientTLS(address)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.StartTLS(ctx, tlsConfig, true); err != nil {
			conn.Close()
			return nil, err
		}
	}
	s.logger.Info("connected", "address", address, "tls", s.config.TLS != nil)
	return conn, nil
}
