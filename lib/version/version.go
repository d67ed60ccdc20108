// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X" at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// commit returns GitCommit, falling back to the VCS stamp the Go
// toolchain embeds when the binary was built without -ldflags.
func commit() (string, bool) {
	if GitCommit != "unknown" {
		return GitCommit, GitDirty == "true"
	}
	info, ok := readBuildInfo()
	if !ok {
		return GitCommit, false
	}
	revision, dirty := GitCommit, false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return revision, dirty
}

// Info returns the version line for "qtstream version":
// "0.1.0-dev (abc1234-dirty, 2026-10-14T09:00:00Z)".
func Info() string {
	revision, dirty := commit()
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, revision, suffix, BuildTime)
}

// Full is Info followed by the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}
