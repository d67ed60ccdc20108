// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Qtstream decodes, encodes, and exchanges Qt QDataStream messages.
//
// It reads and writes length-prefixed message streams as JSON, YAML,
// or CBOR, talks to running Qt applications over TCP or Unix sockets
// with optional TLS, and records sessions to compressed capture files
// for later replay. Run "qtstream --help" for the command list.
package main
