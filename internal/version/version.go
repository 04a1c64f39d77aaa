package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Name of the application
	AppName = "ModSync"

	// Version of the application
	Version = "0.3.0-dev"

	// Git commit hash of the application
	Revision = "HEAD"

	// Build date of the application
	BuildDate = ""
)

func init() {
	resolveFromBuildInfo()
}

// resolveFromBuildInfo populates Version/Revision/BuildDate from Go build
// metadata when ldflags didn't provide real values.
func resolveFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	settings := map[string]string{}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if Version == "0.3.0-dev" || Version == "" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		if t := settings["vcs.time"]; t != "" {
			BuildDate = t
		}
	}
}

// Short returns a concise version string - `0.3.0 (5e23a4)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed returns a full version string - `0.3.0 (5e23a4; go1.23.6; linux/amd64; <date>)`
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, BuildDate)
}

// DetailedWithApp returns a full version string prefixed with the app name.
func DetailedWithApp() string {
	return fmt.Sprintf("%s %s", AppName, Detailed())
}
