// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for qtstream packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), and t.TempDir() under a deeply nested
// TMPDIR can exceed it. The directory is removed when the test
// completes.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls.
//
// [Pipe] returns both ends of an in-memory duplex connection that are
// closed at test cleanup, and [Chunks] splits a byte stream at given
// offsets to simulate a transport that delivers data in arbitrary
// pieces.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no qtstream-internal dependencies.
package testutil
