// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/capture"
	"github.com/bureau-foundation/qtstream/lib/datastream"
)

type replayParams struct {
	sessionParams
	outputParams
	To      string        `flag:"to" desc:"send the messages to this peer instead of printing them"`
	Timeout time.Duration `flag:"timeout" desc:"connection timeout for --to" default:"10s"`
}

func replayCommand(env *Environment) *cli.Command {
	var params replayParams

	return &cli.Command{
		Name:    "replay",
		Summary: "Decode a capture file, or send it to a peer",
		Description: `Read a capture written by "qtstream record", verify every block, and
print its messages like "qtstream decode". With --to the messages are
sent to a peer instead, in their recorded order.

A damaged block stops the replay with an error naming the block. A
capture cut off in the middle of a message ends with exit status 2
after the complete messages have been handled.`,
		Usage: "qtstream replay [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Print a capture as typed JSON lines",
				Command:     "qtstream replay --typed session.qtscap",
			},
			{
				Description: "Replay a session against a test build",
				Command:     "qtstream replay --to 127.0.0.1:4243 session.qtscap",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: qtstream replay [flags] <file>")
			}
			s, err := params.open(env, logger)
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open capture: %w", err)
			}
			defer file.Close()
			reader := capture.NewReader(file)

			var emit func(datastream.Value) error
			if params.To != "" {
				conn, err := s.dial(ctx, params.To, params.Timeout)
				if err != nil {
					return err
				}
				defer conn.Close()
				emit = func(value datastream.Value) error { return conn.Send(value) }
			} else {
				out, err := params.printer(env.Stdout)
				if err != nil {
					return err
				}
				emit = out.print
			}

			sent := 0
			err = decodeStream(env, reader, s, func(value datastream.Value) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				sent++
				return emit(value)
			})
			logger.Info("replayed", "file", args[0], "messages", sent, "blocks", reader.Blocks())
			return err
		},
	}
}
