// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// StartTLS upgrades the attached transport to TLS in place. Qt
// protocols commonly negotiate encryption in-band over an established
// plaintext connection, so the upgrade happens between messages: no
// Receive may be in progress, and bytes the peer sends before its
// ClientHello must already have been consumed.
//
// The transport must be a net.Conn. isClient selects which side of the
// handshake to run. The handshake completes before StartTLS returns.
func (c *Conn) StartTLS(ctx context.Context, config *tls.Config, isClient bool) error {
	c.readMutex.Lock()
	defer c.readMutex.Unlock()

	plain, ok := c.Transport().(net.Conn)
	if !ok {
		return fmt.Errorf("starting TLS: transport %T is not a net.Conn", c.Transport())
	}

	var secured *tls.Conn
	if isClient {
		secured = tls.Client(plain, config)
	} else {
		secured = tls.Server(plain, config)
	}
	if err := secured.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("TLS handshake: %w", err)
	}

	state := secured.ConnectionState()
	c.logger.Debug("TLS established",
		"client", isClient,
		"version", tls.VersionName(state.Version),
		"cipher_suite", tls.CipherSuiteName(state.CipherSuite),
	)
	c.SetTransport(secured)
	return nil
}
