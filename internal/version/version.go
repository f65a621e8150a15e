// Package version reports the htmlnorm build.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/htmlnorm/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, set the same way.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version. Without ldflags the
// module version and VCS revision embedded by the Go toolchain are used.
func String() string {
	v, commit := Version, GitCommit
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "unknown" && info.Main.Version != "" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && commit == "unknown" {
				commit = s.Value
			}
		}
	}
	return fmt.Sprintf("htmlnorm %s (commit %s, built %s)", v, commit, BuildTime)
}
