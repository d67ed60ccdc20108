// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package datastream implements the value model and binary codec of
// Qt's QDataStream serialization, so that Go programs can exchange
// typed values with Qt peers.
//
// The format is fixed externally; this package reproduces it rather
// than defining one. All multi-byte fields are big-endian. Text is
// UTF-16BE behind a 4-byte byte length, where the all-ones length
// marks a null string. Containers write a 4-byte count followed by
// their elements in order.
//
// # Values
//
// [Value] is a closed set of variant types, one per wire type: [Bool],
// [Int], [UInt], [Int64], [UInt64], [Short], [Double], [Char],
// [String], [ByteArray], [StringList], [List], [Map], [Time],
// [DateTime], [UserType], and [Invalid]. Two envelope variants control
// the QVariant header: [Variant] forces one at the top level and
// [Null] is an envelope with its is-null flag set.
//
// A QVariant envelope is written as a 4-byte type id, a 1-byte is-null
// flag, the user type name for [TypeUserType], and then the payload
// (omitted when the flag is set). Elements of [List] and values of
// [Map] always carry an envelope. This matches the stream versions
// that include the null flag; peers on older stream versions are not
// supported.
//
// # User types
//
// A [Registry] holds application-defined record layouts. The wire
// carries no field names, so both sides must agree on the field list
// registered under each name:
//
//	registry := datastream.NewRegistry()
//	registry.Register("NetworkId", datastream.Alias(datastream.TypeInt))
//	registry.Register("BufferInfo", datastream.Fields(
//	    datastream.FieldOf("id", datastream.TypeInt),
//	    datastream.FieldOfUser("network", "NetworkId"),
//	    datastream.FieldOf("name", datastream.TypeByteArray),
//	))
//
// The registry is passed to [NewDecoder] and [NewEncoder] explicitly;
// there is no process-wide registry.
//
// # Encoding native values
//
// [Encoder.Encode] accepts either a Value or a plain Go value, which
// [ValueOf] maps to a default wire type (integers become UInt, maps
// become Map, and so on). Wrapping a value in a variant type overrides
// the default, e.g. datastream.Int64(n). [Convert] coerces a native
// value to a chosen type and [Registry.Build] assembles a [UserType]
// from a struct or map.
//
// # Decoding
//
// [Decoder.Decode] reads one value of a known [Shape] and returns the
// bytes it did not consume. Decoding never returns a partial value:
// any short read is [ErrMalformed], as is a Bool byte other than 0
// or 1 and a QString holding an unpaired UTF-16 surrogate, since
// neither would re-encode to the same bytes. An unknown type id is
// [ErrUnknownType], and an unknown user type name is
// [ErrUnregisteredType]. Errors are [*DecodeError] values carrying the
// byte offset and the position in the value tree.
package datastream
