// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

// These tests replace package variables and must not run in parallel.

func withBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	t.Helper()
	saved := readBuildInfo
	savedCommit, savedDirty := GitCommit, GitDirty
	t.Cleanup(func() {
		readBuildInfo = saved
		GitCommit, GitDirty = savedCommit, savedDirty
	})
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestInfoFromLinkerFlags(t *testing.T) {
	withBuildInfo(t, debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffffff"})
	GitCommit, GitDirty = "abc1234", "true"
	if got := Info(); got != Version+" (abc1234-dirty, "+BuildTime+")" {
		t.Errorf("Info: got %q", got)
	}
}

func TestInfoFromBuildInfo(t *testing.T) {
	withBuildInfo(t,
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"},
		debug.BuildSetting{Key: "vcs.modified", Value: "false"},
	)
	GitCommit = "unknown"
	if got := Info(); !strings.Contains(got, "(0123456, ") {
		t.Errorf("Info: got %q, want the truncated VCS revision", got)
	}
}

func TestInfoWithoutAnySource(t *testing.T) {
	withBuildInfo(t)
	GitCommit = "unknown"
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if got := Info(); !strings.Contains(got, "(unknown, ") {
		t.Errorf("Info: got %q", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	for _, want := range []string{Info(), runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH} {
		if !strings.Contains(full, want) {
			t.Errorf("Full() = %q, missing %q", full, want)
		}
	}
	if Short() != Version {
		t.Errorf("Short: got %q", Short())
	}
}
