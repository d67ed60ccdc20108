// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the qtstream configuration file.
//
// Configuration comes from a single file named by either the
// QTSTREAM_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search. The file is YAML, or JSON with comments when its name ends
// in .json or .jsonc:
//
//	types:
//	  - name: NetworkId
//	    alias: Int
//	  - name: BufferInfo
//	    fields:
//	      - {name: id, type: Int}
//	      - {name: network, type: NetworkId}
//	      - {name: type, type: Short}
//	      - {name: name, type: QByteArray}
//	shape: variant
//	address: localhost:4242
//	tls:
//	  ca: ca.pem
//
// [Config.Registry] turns the types section into a
// datastream.Registry, rejecting unknown base types and references to
// undefined user types.
package config
