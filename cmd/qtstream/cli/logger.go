// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// DebugEnvironmentVariable turns on debug logging for every command
// when set to a non-empty value other than "0".
const DebugEnvironmentVariable = "QTSTREAM_DEBUG"

// NewCommandLogger returns the logger commands write diagnostics to.
// On a terminal it uses slog.TextHandler; when w is piped or
// redirected it emits JSON lines for other tools to parse.
//
// level is shared with the handler, so a command may raise verbosity
// after the logger is built (for --verbose).
func NewCommandLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	if value := os.Getenv(DebugEnvironmentVariable); value != "" && value != "0" {
		level.Set(slog.LevelDebug)
	}
	options := &slog.HandlerOptions{Level: level}
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
