// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
)

// Environment is the process surface commands read and write. main
// passes the real one; tests substitute buffers.
type Environment struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Level is the logger's level, raised by --verbose.
	Level *slog.LevelVar

	// Getenv reads environment variables. Nil means os.Getenv.
	Getenv func(string) string
}

// OSEnvironment returns the Environment of the running process.
func OSEnvironment(level *slog.LevelVar) *Environment {
	return &Environment{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Level:  level,
		Getenv: os.Getenv,
	}
}

func (e *Environment) getenv(name string) string {
	if e.Getenv == nil {
		return os.Getenv(name)
	}
	return e.Getenv(name)
}

// Root returns the "qtstream" command tree.
func Root(env *Environment) *cli.Command {
	return &cli.Command{
		Name:    "qtstream",
		Summary: "Decode, encode, and exchange Qt QDataStream messages",
		Description: `Tools for Qt applications that speak QDataStream over a byte stream.

Messages are length-prefixed QDataStream bodies: by default each body is
one QVariant, decoded into a typed value tree. The user types an
application registers with qRegisterMetaType, the body layout, and the
default peer address come from a configuration file named by --config or
the QTSTREAM_CONFIG environment variable.

Set QTSTREAM_DEBUG=1 or pass --verbose to log framing progress.`,
		HelpOutput: env.Stderr,
		Subcommands: []*cli.Command{
			decodeCommand(env),
			encodeCommand(env),
			diagCommand(env),
			dialCommand(env),
			listenCommand(env),
			recordCommand(env),
			replayCommand(env),
			typesCommand(env),
			versionCommand(env),
		},
		Examples: []cli.Example{
			{
				Description: "Decode a captured stream to JSON lines",
				Command:     "qtstream decode --config app.yaml session.bin",
			},
			{
				Description: "Send a message to a running application",
				Command:     "qtstream dial --send hello.json 127.0.0.1:4242",
			},
			{
				Description: "Record a session and replay it later",
				Command:     "qtstream record 127.0.0.1:4242 session.qtscap && qtstream replay session.qtscap",
			},
		},
	}
}
