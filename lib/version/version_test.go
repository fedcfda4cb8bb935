// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"runtime/debug"
	"strings"
	"testing"
)

func TestBuildString(t *testing.T) {
	tests := []struct {
		name  string
		build Build
		want  string
	}{
		{"clean", Build{Version: "1.2.0", Commit: "abc1234", Time: "2026-03-01T09:00:00Z"}, "1.2.0 (abc1234, 2026-03-01T09:00:00Z)"},
		{"dirty", Build{Version: "1.2.0", Commit: "abc1234", Dirty: true, Time: "2026-03-01T09:00:00Z"}, "1.2.0 (abc1234-dirty, 2026-03-01T09:00:00Z)"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.build.String(); got != test.want {
				t.Errorf("String() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestWithSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-03-01T09:00:00Z"},
	}

	t.Run("fills empty fields", func(t *testing.T) {
		got := Build{}.withSettings(settings)
		if got.Commit != "0123456789ab" {
			t.Errorf("Commit = %q, want the abbreviated revision", got.Commit)
		}
		if !got.Dirty {
			t.Error("expected Dirty from vcs.modified")
		}
		if got.Time != "2026-03-01T09:00:00Z" {
			t.Errorf("Time = %q", got.Time)
		}
	})

	t.Run("ldflags win", func(t *testing.T) {
		got := Build{Commit: "release", Time: "injected"}.withSettings(settings)
		if got.Commit != "release" || got.Dirty || got.Time != "injected" {
			t.Errorf("withSettings overrode injected values: %+v", got)
		}
	})
}

func TestCurrentUsesInjectedValues(t *testing.T) {
	saved := []string{Version, GitCommit, GitDirty, BuildTime}
	t.Cleanup(func() {
		Version, GitCommit, GitDirty, BuildTime = saved[0], saved[1], saved[2], saved[3]
	})
	Version, GitCommit, GitDirty, BuildTime = "1.2.0", "abc1234", "true", "2026-03-01T09:00:00Z"

	if got, want := Current().String(), "1.2.0 (abc1234-dirty, 2026-03-01T09:00:00Z)"; got != want {
		t.Errorf("Current() = %q, want %q", got, want)
	}
}

func TestPrint(t *testing.T) {
	var buffer bytes.Buffer
	Print(&buffer, "hearth")
	output := buffer.String()
	if !strings.HasPrefix(output, "hearth "+Current().String()) {
		t.Errorf("Print output %q does not start with the binary and build", output)
	}
	if !strings.Contains(output, "Go: ") || !strings.Contains(output, "Platform: ") {
		t.Errorf("Print output %q lacks the toolchain lines", output)
	}
}
