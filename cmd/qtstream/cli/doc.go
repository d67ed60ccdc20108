// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the qtstream binary: a
// tree of [Command] values dispatched by name, flags bound from
// struct tags through spf13/pflag, "did you mean" suggestions for
// mistyped commands and flags, and [ExitError] for commands whose
// non-zero exit is an answer rather than a failure.
package cli
