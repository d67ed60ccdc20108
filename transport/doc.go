// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries QDataStream byte streams between processes.
//
// The package defines two interfaces: [Listener] accepts inbound
// connections (Serve, Address, Close), and [Dialer] establishes
// outbound connections (DialContext). Both deal in net.Conn; framing
// and decoding live above this layer in lib/framing and lib/peer, which
// treat the connection as an ordered, gap-free duplex byte channel.
//
// [TCPListener] and [TCPDialer] cover the usual case of a Qt
// application listening on a TCP port. [UnixListener] and [UnixDialer]
// serve local peers over a Unix domain socket. [Listen] and
// [NetworkDialer] pick between the two by address: "unix:/path" selects
// a socket, anything else is "host:port".
//
// [IsExpectedCloseError] separates normal peer disconnects from real
// failures so callers can avoid logging the former as errors.
package transport
