package attachmeta

import (
	"runtime"
	"runtime/debug"
)

// Version is the semantic version of the attachmeta library.
const Version = "0.1.0"

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	Modified  bool // built from a dirty tree
}

// GetVersionInfo returns the library version and the VCS stamp of the
// binary it is linked into.
//
// The commit and build time come from the build info that the go command
// embeds for binaries built inside a git checkout; they read "unknown"
// otherwise (for example under go test or go run).
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		GitCommit: "unknown",
		BuildTime: "unknown",
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.GitCommit = s.Value
		case "vcs.time":
			info.BuildTime = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
