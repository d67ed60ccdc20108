// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package framing splits a QDataStream byte stream into messages and
// writes messages back out.
//
// Every message on the wire is a 4-byte big-endian body length
// followed by exactly that many body bytes. Transports deliver bytes in
// arbitrary chunks, so [Reader] is an incremental state machine: each
// call to [Reader.Feed] appends a chunk and returns every message that
// became complete, in arrival order. A chunk can complete zero, one, or
// many messages, and the same byte sequence yields the same messages
// however it is split.
//
// Errors are terminal for the stream. A declared length above the
// packet limit fails as soon as the prefix arrives
// ([ErrOversizedPacket]); a body that does not decode, or decodes
// without consuming all of its bytes, fails the stream with the
// decoder's error; and ending the stream with a partial message
// buffered is [ErrTruncatedStream]. Qt's format has no resynchronization
// marker, so a Reader that has failed returns the same error forever.
//
// [StreamReader] pulls chunks from an [io.Reader] and hands messages
// out one at a time. [Writer] is the sending half: it encodes values
// and writes them as length-prefixed frames, or as bare bodies when an
// outer layer already delimits messages.
package framing
