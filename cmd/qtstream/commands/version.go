// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/version"
)

type versionParams struct {
	Short bool `flag:"short" desc:"print only the version number"`
}

func versionCommand(env *Environment) *cli.Command {
	var params versionParams

	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if params.Short {
				_, err := fmt.Fprintln(env.Stdout, version.Short())
				return err
			}
			_, err := fmt.Fprintln(env.Stdout, version.Full())
			return err
		},
	}
}
