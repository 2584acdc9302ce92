package version

import (
	"runtime"
	"testing"
)

// setBuildInfo overrides the ldflags variables for the duration of a test.
func setBuildInfo(t *testing.T, version, commit, buildTime string) {
	t.Helper()

	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	t.Cleanup(func() {
		Version = origVersion
		GitCommit = origCommit
		BuildTime = origBuildTime
	})

	Version = version
	GitCommit = commit
	BuildTime = buildTime
}

func TestVersion_Default(t *testing.T) {
	// Version may be set by ldflags in CI, so just check it's not empty
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestFull(t *testing.T) {
	tests := []struct {
		name      string
		commit    string
		buildTime string
		want      string
	}{
		{"version only", "", "", "1.0.0"},
		{"with commit", "abc1234", "", "1.0.0-abc1234"},
		{"with build time", "", "2026-01-29T12:00:00Z", "1.0.0 (2026-01-29T12:00:00Z)"},
		{"complete", "abc1234", "2026-01-29T12:00:00Z", "1.0.0-abc1234 (2026-01-29T12:00:00Z)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuildInfo(t, "1.0.0", tt.commit, tt.buildTime)
			if got := Full(); got != tt.want {
				t.Errorf("Full() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGet(t *testing.T) {
	setBuildInfo(t, "2.1.0", "def5678", "")

	info := Get()
	if info.Version != "2.1.0" {
		t.Errorf("Version = %q, want %q", info.Version, "2.1.0")
	}
	if info.GitCommit != "def5678" {
		t.Errorf("GitCommit = %q, want %q", info.GitCommit, "def5678")
	}
	if info.BuildTime != "" {
		t.Errorf("BuildTime = %q, want empty", info.BuildTime)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}
