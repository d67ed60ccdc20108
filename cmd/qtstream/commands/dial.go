// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/peer"
)

// connectParams are the flags of commands that dial a peer and may
// open the conversation with messages of their own.
type connectParams struct {
	documentParams
	Send    string        `flag:"send,s" desc:"file of documents to send after connecting (see 'qtstream encode')"`
	Timeout time.Duration `flag:"timeout" desc:"connection timeout" default:"10s"`
}

// sendDocuments sends every message in the --send file over conn.
func (p *connectParams) sendDocuments(conn *peer.Conn, s *session) error {
	if p.Send == "" {
		return nil
	}
	data, err := os.ReadFile(p.Send)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.Send, err)
	}
	values, err := p.messages(data, p.Send, s.shape)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Send, err)
	}
	for index, value := range values {
		if err := conn.Send(value); err != nil {
			return fmt.Errorf("send message %d: %w", index+1, err)
		}
	}
	s.logger.Debug("sent messages", "count", len(values), "file", p.Send)
	return nil
}

// firstError keeps the first error reported from handler callbacks.
type firstError struct {
	mutex sync.Mutex
	err   error
}

func (f *firstError) set(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *firstError) get() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.err
}

type dialParams struct {
	sessionParams
	outputParams
	connectParams
	Count int `flag:"count,n" desc:"disconnect after receiving this many messages (0: until the peer closes)"`
}

func dialCommand(env *Environment) *cli.Command {
	var params dialParams

	return &cli.Command{
		Name:    "dial",
		Summary: "Connect to a peer and print the messages it sends",
		Description: `Connect to a Qt application at <address> ("host:port" or
"unix:/path", default: the configured address), optionally send the
documents in --send, and print every message received until the peer
closes the connection, --count messages have arrived, or the command is
interrupted.

When the configuration has a tls section, the connection is upgraded to
TLS before anything is sent.`,
		Usage: "qtstream dial [flags] [address]",
		Examples: []cli.Example{
			{
				Description: "Send a request and print the first reply",
				Command:     "qtstream dial --send request.json --count 1 127.0.0.1:4242",
			},
			{
				Description: "Watch a local socket as diagnostic text",
				Command:     "qtstream dial --format text unix:/run/app/qt.sock",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("dial takes at most one address, got %d arguments", len(args))
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

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			conn, err := s.dial(ctx, address, params.Timeout)
			if err != nil {
				return err
			}
			if err := params.sendDocuments(conn, s); err != nil {
				conn.Close()
				return err
			}

			var failure firstError
			runErr := conn.Run(ctx, peer.Handlers{
				OnMessage: func(value datastream.Value) {
					if err := out.print(value); err != nil {
						failure.set(fmt.Errorf("write output: %w", err))
						cancel()
						return
					}
					if params.Count > 0 && out.printed() >= params.Count {
						cancel()
					}
				},
				OnEnd: func() { logger.Info("peer closed the connection", "messages", out.printed()) },
			})
			if err := failure.get(); err != nil {
				return err
			}
			return runErr
		},
	}
}
