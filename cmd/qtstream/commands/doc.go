// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the qtstream command tree.
//
// Every command reads its process surface (stdin, stdout, stderr,
// environment) from an [Environment], so tests drive the real command
// implementations with buffers. Commands that handle messages share
// the session flags (--config, --shape, --raw, --max-packet-size,
// --verbose), which resolve to a registry, a message shape, and
// framing limits from the configuration file.
package commands
