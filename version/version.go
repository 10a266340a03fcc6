// Package version reports the build of the holysaw binaries.
package version

import (
	"runtime/debug"
	"sync"
)

// Version can be set at link time:
//
//	go build -ldflags "-X github.com/holysaw/holysaw/version.Version=$(git describe --dirty)"
var Version string

var buildInfo = sync.OnceValues(func() (revision string, goVersion string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}
	return revision, info.GoVersion
})

// String returns Version if it was set, otherwise the short VCS revision the
// binary was built from, or "devel" when neither is known.
func String() string {
	if Version != "" {
		return Version
	}
	if rev, _ := buildInfo(); rev != "" {
		return rev
	}
	return "devel"
}

// GoVersion returns the toolchain the binary was built with.
func GoVersion() string {
	_, v := buildInfo()
	return v
}
