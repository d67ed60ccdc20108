// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/cmd/qtstream/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own diagnosis (decode on a truncated
		// stream) return an error carrying the exit code. Don't print a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := new(slog.LevelVar)
	logger := cli.NewCommandLogger(os.Stderr, level)
	return commands.Root(commands.OSEnvironment(level)).Execute(ctx, os.Args[1:], logger)
}
