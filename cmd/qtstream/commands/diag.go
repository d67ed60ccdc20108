// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/datastream"
)

type diagParams struct {
	sessionParams
	Hex bool `flag:"hex,x" desc:"input is hex text"`
}

func diagCommand(env *Environment) *cli.Command {
	var params diagParams

	return &cli.Command{
		Name:    "diag",
		Summary: "Print each message in diagnostic notation",
		Description: `Read QDataStream messages like "qtstream decode" and print one line
per message, prefixed by its index, in diagnostic notation that keeps
every wire type visible:

  0	Variant(Map{"id": UInt64(7), "name": "sensor"})
  1	Variant(NetworkId{Int(3)})

Strings print quoted, null strings as null, and byte arrays as hex.`,
		Usage: "qtstream diag [flags] [file]",
		Examples: []cli.Example{
			{
				Description: "Inspect the types in a capture",
				Command:     "qtstream diag session.bin",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			s, err := params.open(env, logger)
			if err != nil {
				return err
			}
			input, err := openInput(env, args, params.Hex)
			if err != nil {
				return err
			}
			defer input.Close()

			index := 0
			emit := func(value datastream.Value) error {
				_, err := fmt.Fprintf(env.Stdout, "%d\t%v\n", index, value)
				index++
				return err
			}
			if s.raw {
				return decodeRaw(input, s, emit)
			}
			return decodeStream(env, input, s, emit)
		},
	}
}
