// Package version holds build information for dbpool binaries.
//
// The values are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/dbpool/version.Version=1.0.0 \
//	  -X github.com/go-i2p/dbpool/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds report "dev".
package version

import "runtime"

// Version is the software version.
var Version = "dev"

// GitCommit is the short commit hash the binary was built from.
var GitCommit = ""

// BuildTime is when the binary was built, in RFC 3339 form.
var BuildTime = ""

// Info is the build information reported by the status server.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// Full returns the version string including commit and build time if available.
func Full() string {
	v := Version
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}
