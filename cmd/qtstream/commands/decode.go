// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/framing"
)

type decodeParams struct {
	sessionParams
	outputParams
	Hex bool `flag:"hex,x" desc:"input is hex text"`
}

func decodeCommand(env *Environment) *cli.Command {
	var params decodeParams

	return &cli.Command{
		Name:    "decode",
		Summary: "Convert a QDataStream message stream to JSON, YAML, or CBOR",
		Description: `Read length-prefixed QDataStream messages from a file or stdin and
write one document per message to stdout.

By default each message is printed as one line of compact JSON holding
its plain value: strings, numbers, lists, and objects, with user types
as objects of their fields. With --typed the output is the lossless
typed tree that "qtstream encode" reads back, so

  qtstream decode --typed < in.bin | qtstream encode > out.bin

reproduces the input byte for byte.

With --raw the input is bare message bodies without length prefixes,
decoded back to back until the input is consumed.

Exit status is 2 when the stream ends in the middle of a message, after
every complete message has been printed.`,
		Usage: "qtstream decode [flags] [file]",
		Examples: []cli.Example{
			{
				Description: "Decode a capture to JSON lines",
				Command:     "qtstream decode session.bin",
			},
			{
				Description: "Decode hex pasted from a packet dump",
				Command:     "echo '00000009 0000000a 00 00000000' | qtstream decode --hex",
			},
			{
				Description: "Decode messages whose bodies are a bare user type",
				Command:     "qtstream decode --config app.yaml --shape user:Message session.bin",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			s, err := params.open(env, logger)
			if err != nil {
				return err
			}
			out, err := params.printer(env.Stdout)
			if err != nil {
				return err
			}
			input, err := openInput(env, args, params.Hex)
			if err != nil {
				return err
			}
			defer input.Close()

			if s.raw {
				return decodeRaw(input, s, out.print)
			}
			return decodeStream(env, input, s, out.print)
		},
	}
}

// decodeStream emits every framed message in input. A stream cut off
// mid-message is reported on stderr and ends with exit status 2.
func decodeStream(env *Environment, input io.Reader, s *session, emit func(datastream.Value) error) error {
	stream := framing.NewStreamReader(input, s.framer())
	for {
		value, err := stream.Next()
		if errors.Is(err, io.EOF) {
			s.logger.Debug("stream complete", "messages", stream.Framer().Packets())
			return nil
		}
		if errors.Is(err, framing.ErrTruncatedStream) {
			fmt.Fprintf(env.Stderr, "%v\n", err)
			return &cli.ExitError{Code: 2}
		}
		if err != nil {
			return err
		}
		if err := emit(value); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
}

// decodeRaw emits bare message bodies decoded back to back.
func decodeRaw(input io.Reader, s *session, emit func(datastream.Value) error) error {
	data, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	decoder := datastream.NewDecoder(s.registry)
	for count := 0; len(data) > 0; count++ {
		value, rest, err := decoder.Decode(data, s.shape)
		if err != nil {
			return fmt.Errorf("message %d: %w", count+1, err)
		}
		data = rest
		if err := emit(value); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}
