// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer is a message-level connection to a Qt application that
// speaks QDataStream over a byte stream.
//
// A [Conn] wraps any io.ReadWriteCloser, typically a net.Conn from the
// transport package. [Conn.Receive] pulls bytes through a
// framing.Reader and returns one decoded message per call;
// [Conn.Send] encodes a value and writes it as one frame. [Conn.Run]
// turns the pull loop into callbacks that mirror the transport's own
// lifecycle: a message handler, an error handler for terminal
// failures, an end handler for a clean half-close by the peer, and a
// close handler that always runs last.
//
// The transport is replaceable. [Conn.SetTransport] and
// [Conn.RemoveTransport] swap it without losing a partially received
// frame, and [Conn.StartTLS] uses that to upgrade a plaintext
// connection to crypto/tls in place, as Qt protocols with in-band
// encryption negotiation require.
package peer
