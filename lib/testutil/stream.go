// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"sort"
	"testing"
)

// Pipe returns the two ends of a synchronous in-memory connection.
// Both ends are closed when the test completes.
func Pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	left, right := net.Pipe()
	t.Cleanup(func() {
		_ = left.Close()
		_ = right.Close()
	})
	return left, right
}

// Chunks splits data at the given offsets. Offsets are sorted, and any
// outside the data are dropped, so the concatenation of the result
// always equals data.
//
//	testutil.Chunks([]byte("abcdef"), 2, 3) // "ab", "c", "def"
func Chunks(data []byte, offsets ...int) [][]byte {
	sorted := append([]int(nil), offsets...)
	sort.Ints(sorted)
	var chunks [][]byte
	start := 0
	for _, offset := range sorted {
		if offset <= start || offset >= len(data) {
			continue
		}
		chunks = append(chunks, data[start:offset])
		start = offset
	}
	return append(chunks, data[start:])
}
