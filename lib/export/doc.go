// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package export renders decoded QDataStream values for people and
// for other tools.
//
// Two tree forms are available. [Typed] is lossless: every node names
// its wire type, null strings stay distinct from empty ones, and map
// order and user type field names survive, so [ParseTyped] can rebuild
// the exact Value and the encoder reproduces the exact bytes. [Plain]
// is the shape a reader expects ({"id": 3, "name": "hi"}) and is
// lossy.
//
// Either tree serializes through [WriteJSON], [WriteYAML], or
// [MarshalCBOR]. [Highlight] adds terminal syntax coloring.
package export
