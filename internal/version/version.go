// Package version reports build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// Resolved returns Version, or the module version recorded by go install
// when nothing was stamped.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	info, ok := readBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return Version
	}
	return strings.TrimPrefix(info.Main.Version, "v")
}

func revision() string {
	if Commit != "none" {
		return Commit
	}
	if info, ok := readBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}
	return Commit
}

func String() string {
	return fmt.Sprintf("rehearse %s (commit=%s, date=%s, go=%s)", Resolved(), revision(), Date, runtime.Version())
}

// UserAgent identifies rehearse to the interview backend.
func UserAgent() string {
	return "rehearse/" + Resolved()
}
