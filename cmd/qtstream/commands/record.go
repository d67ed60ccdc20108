// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/capture"
	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/peer"
)

type recordParams struct {
	sessionParams
	connectParams
	Compression string `flag:"compression,c" desc:"block compression: none, lz4, or zstd" default:"zstd"`
	BlockSize   int    `flag:"block-size" desc:"uncompressed bytes per block (0: 1 MiB)"`
	Count       int    `flag:"count,n" desc:"stop after this many messages (0: until the peer closes)"`
}

func recordCommand(env *Environment) *cli.Command {
	var params recordParams

	return &cli.Command{
		Name:    "record",
		Summary: "Capture the messages a peer sends to a file",
		Description: `Connect to <address> like "qtstream dial" and write every message
received to a capture file until the peer closes the connection,
--count messages have arrived, or the command is interrupted.

A capture holds length-prefixed messages in blocks, each compressed
(zstd by default) and protected by a BLAKE3 hash. "qtstream replay"
reads it back. Messages are stored framed even when the session is
--raw, so a capture always replays with the default framing.`,
		Usage: "qtstream record [flags] [address] <file>",
		Examples: []cli.Example{
			{
				Description: "Record a session until the peer disconnects",
				Command:     "qtstream record 127.0.0.1:4242 session.qtscap",
			},
			{
				Description: "Record 100 messages with fast compression",
				Command:     "qtstream record --count 100 --compression lz4 unix:/run/app/qt.sock burst.qtscap",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			var addressArgs []string
			var path string
			switch len(args) {
			case 1:
				path = args[0]
			case 2:
				addressArgs, path = args[:1], args[1]
			default:
				return fmt.Errorf("usage: qtstream record [address] <file>")
			}
			tag, err := capture.ParseCompressionTag(params.Compression)
			if err != nil {
				return err
			}
			s, err := params.open(env, logger)
			if err != nil {
				return err
			}
			address, err := s.address(addressArgs)
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

			file, err := os.Create(path)
			if err != nil {
				conn.Close()
				return fmt.Errorf("create capture: %w", err)
			}
			recorder := capture.NewWriter(file, tag, params.BlockSize)
			encoder := datastream.NewEncoder(s.registry)

			var failure firstError
			messages := 0
			runErr := conn.Run(ctx, peer.Handlers{
				OnMessage: func(value datastream.Value) {
					frame, err := encoder.EncodeFramed(value)
					if err == nil {
						_, err = recorder.Write(frame)
					}
					if err != nil {
						failure.set(fmt.Errorf("record message %d: %w", messages+1, err))
						cancel()
						return
					}
					messages++
					if params.Count > 0 && messages >= params.Count {
						cancel()
					}
				},
			})

			closeErr := errors.Join(recorder.Close(), file.Close())
			logger.Info("recorded",
				"file", path,
				"messages", messages,
				"blocks", recorder.Blocks(),
				"bytes", recorder.WrittenBytes(),
				"stored_bytes", recorder.StoredBytes(),
				"compression", tag.String(),
			)
			if err := failure.get(); err != nil {
				return err
			}
			if closeErr != nil {
				return fmt.Errorf("finish capture: %w", closeErr)
			}
			return runErr
		},
	}
}
