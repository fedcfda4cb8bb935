// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/hearth-chat/hearth/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
	Version   = "0.1.0-dev"
)

// shortCommit is the length of an abbreviated commit hash.
const shortCommit = 12

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	Time      string
	GoVersion string
	Platform  string
}

// Current returns the build description. Values injected with ldflags
// win over the embedded VCS stamp.
func Current() Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		Time:      BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build = build.withSettings(info.Settings)
	}
	if build.Commit == "" {
		build.Commit = "unknown"
	}
	if build.Time == "" {
		build.Time = "unknown"
	}
	return build
}

// withSettings fills fields the ldflags left empty from the go
// command's vcs.* build settings.
func (b Build) withSettings(settings []debug.BuildSetting) Build {
	injected := b.Commit != ""
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if !injected {
				b.Commit = setting.Value
				if len(b.Commit) > shortCommit {
					b.Commit = b.Commit[:shortCommit]
				}
			}
		case "vcs.modified":
			if !injected {
				b.Dirty = setting.Value == "true"
			}
		case "vcs.time":
			if b.Time == "" {
				b.Time = setting.Value
			}
		}
	}
	return b
}

// String formats the build as "version (commit[-dirty], time)".
func (b Build) String() string {
	dirty := ""
	if b.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", b.Version, b.Commit, dirty, b.Time)
}

// Print writes the --version output for binary to w.
func Print(w io.Writer, binary string) {
	build := Current()
	fmt.Fprintf(w, "%s %s\n  Go: %s\n  Platform: %s\n", binary, build, build.GoVersion, build.Platform)
}
