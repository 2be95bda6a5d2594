// Package version reports the build identity of the evalgrep binary.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Build identity, overridden at link time with
// -ldflags "-X github.com/Sumatoshi-tech/evalgrep/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills unset build identity from the module build info
// embedded by "go install" and "go build".
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	applyBuildInfo(info)
}

func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the identity as printed by "evalgrep version".
func String() string {
	return fmt.Sprintf("evalgrep %s (commit: %s, built: %s)", Version, Commit, Date)
}
