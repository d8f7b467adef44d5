// Package version reports which tunebook build is running.
//
// Release builds stamp the values with ldflags:
//
//	-X github.com/tunebook/tunebook/pkg/version.Version=1.2.0
//	-X github.com/tunebook/tunebook/pkg/version.Commit=$(git rev-parse --short HEAD)
//	-X github.com/tunebook/tunebook/pkg/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)
//
// Builds made with plain `go build` or `go install` fall back to the module
// and VCS metadata the toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fillFromBuildInfo(bi)
}

// fillFromBuildInfo replaces values ldflags left at their defaults.
func fillFromBuildInfo(bi *debug.BuildInfo) {
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}

	var dirty bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = s.Value
				if len(Commit) > 12 {
					Commit = Commit[:12]
				}
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && Commit != unknown {
		Commit += "-dirty"
	}
}

// Info is the JSON form of the build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the build information of the running binary.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("tunebook %s (commit %s, built %s, %s %s/%s)",
		i.Version, i.Commit, i.Date, i.GoVersion, i.OS, i.Arch)
}

// String is the one-line form printed by `tunebook version`.
func String() string { return GetInfo().String() }

// Short returns the bare version.
func Short() string { return Version }
