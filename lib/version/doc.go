// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the qtstream binary.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected at
// build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/qtstream/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/qtstream
//
// Without -ldflags the commit comes from the VCS information the Go
// toolchain stamps into the binary, when there is any.
package version
