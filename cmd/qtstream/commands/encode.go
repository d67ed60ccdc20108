// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/framing"
)

type encodeParams struct {
	sessionParams
	documentParams
	Hex bool `flag:"hex,x" desc:"write hex text instead of binary"`
}

func encodeCommand(env *Environment) *cli.Command {
	var params encodeParams

	return &cli.Command{
		Name:    "encode",
		Summary: "Convert JSON or YAML documents to QDataStream messages",
		Description: `Read one or more typed documents and write each as one QDataStream
message to stdout, length-prefixed unless --raw is given.

A typed document names the wire type of every value, in the form
"qtstream decode --typed" prints:

  {"type": "Map", "value": [
    {"key": "name", "value": {"type": "String", "value": "sensor"}}
  ]}

With the default variant shape, a document that is not itself a Variant
is wrapped in one. With --native, documents are plain JSON or YAML
values mapped to default wire types: strings to String, integers to
UInt, fractional numbers to Double, objects to Map. An integer that is
negative or does not fit in 32 unsigned bits is rejected; spell it as
a typed document such as {"type": "Int", "value": -1}.

JSON input may hold several concatenated documents and may use comments
and trailing commas. YAML input may hold a "---"-separated stream.`,
		Usage: "qtstream encode [flags] [file]",
		Examples: []cli.Example{
			{
				Description: "Encode a string message",
				Command:     `echo '{"type":"String","value":"hello"}' | qtstream encode > hello.bin`,
			},
			{
				Description: "Encode a plain object as a variant map, shown as hex",
				Command:     `echo '{"name":"sensor"}' | qtstream encode --native --hex`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			s, err := params.open(env, logger)
			if err != nil {
				return err
			}
			data, err := readInput(env, args, false)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			values, err := params.messages(data, path, s.shape)
			if err != nil {
				return err
			}

			var destination io.Writer = env.Stdout
			var buffer bytes.Buffer
			if params.Hex {
				destination = &buffer
			}
			mode := framing.Framed
			if s.raw {
				mode = framing.Raw
			}
			writer := framing.NewWriter(destination, datastream.NewEncoder(s.registry), mode)
			for index, value := range values {
				if err := writer.Write(value); err != nil {
					return fmt.Errorf("message %d: %w", index+1, err)
				}
			}
			logger.Debug("encoded messages", "count", len(values), "mode", mode.String())

			if params.Hex {
				_, err := fmt.Fprintln(env.Stdout, hex.EncodeToString(buffer.Bytes()))
				return err
			}
			return nil
		},
	}
}
