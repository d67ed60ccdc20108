// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed means a length, count, or fixed-width field would
	// read past the end of the bytes available for the message.
	ErrMalformed = errors.New("datastream: malformed message")

	// ErrUnknownType means a QVariant envelope carried a type id this
	// package does not implement.
	ErrUnknownType = errors.New("datastream: unknown type id")

	// ErrUnregisteredType means a user type name has no registry entry.
	ErrUnregisteredType = errors.New("datastream: unregistered user type")

	// ErrUnsupportedValue means the encoder was given something it
	// cannot represent on the wire.
	ErrUnsupportedValue = errors.New("datastream: unsupported value")
)

// DecodeError locates a decode failure inside a message body. Err is
// always one of the package sentinels, possibly wrapped with detail.
type DecodeError struct {
	// Offset is the byte offset into the body where the failing read
	// started.
	Offset int

	// Path names the position in the value tree, e.g.
	// "[2].nick" for the nick field of the third list element.
	Path string

	Err error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode at byte %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("decode %s at byte %d: %v", e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
