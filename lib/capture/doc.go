// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture stores recorded QDataStream traffic on disk so a
// session can be replayed later through a framing.Reader.
//
// A capture file is an 8-byte header (the magic "QTSCAP\x00" and a
// version byte) followed by blocks. Each block carries a 41-byte
// header:
//
//	u8    compression tag (none, lz4, zstd)
//	u32   uncompressed length, big-endian
//	u32   stored length, big-endian
//	[32]  BLAKE3 keyed hash of the uncompressed bytes
//
// and then the stored bytes. The concatenated uncompressed contents of
// all blocks are the recorded frame bytes, length prefixes included.
// Blocks that do not shrink under the requested algorithm are stored
// uncompressed.
package capture
