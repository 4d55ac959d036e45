// Package version reports build metadata for the sentra binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Name is the program name shown in version output and the API index.
const Name = "sentra"

// BuildInfo describes the running binary.
type BuildInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
	BuildTime time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
}

// These variables are set at build time using -ldflags, for example
// -X github.com/conneroisu/sentra/internal/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// vcs holds the settings the Go toolchain stamps into module builds.
type vcs struct {
	mainVersion string
	revision    string
	modified    bool
}

func readVCS() vcs {
	var v vcs
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if info.Main.Version != "(devel)" {
		v.mainVersion = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
}

// GetBuildInfo returns the metadata of the running binary.
func GetBuildInfo() *BuildInfo {
	v := readVCS()
	return &BuildInfo{
		Name:      Name,
		Version:   resolveVersion(Version, v),
		GitCommit: resolveCommit(GitCommit, v),
		Dirty:     v.modified,
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersion returns the release version, or a dev version derived from the
// VCS revision.
func GetVersion() string {
	return resolveVersion(Version, readVCS())
}

// GetGitCommit returns the full commit hash or "unknown".
func GetGitCommit() string {
	return resolveCommit(GitCommit, readVCS())
}

// GetShortVersion returns "v1.2.0 (abc1234)", "dev-abc1234" or "dev".
func GetShortVersion() string {
	return GetBuildInfo().Short()
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return isRelease(GetVersion())
}

func resolveVersion(stamped string, v vcs) string {
	if stamped != "" && stamped != "dev" {
		return stamped
	}
	if v.mainVersion != "" {
		return v.mainVersion
	}
	if len(v.revision) >= 7 {
		return "dev-" + v.revision[:7]
	}
	return "dev"
}

func resolveCommit(stamped string, v vcs) string {
	if stamped != "" && stamped != "unknown" {
		return stamped
	}
	if v.revision != "" {
		return v.revision
	}
	return "unknown"
}

func isRelease(version string) bool {
	return version != "dev" && !strings.HasPrefix(version, "dev-")
}

// Short renders the version with an abbreviated commit.
func (b *BuildInfo) Short() string {
	if b.GitCommit == "unknown" || len(b.GitCommit) < 7 {
		return b.Version
	}
	commit := b.GitCommit[:7]
	if !isRelease(b.Version) {
		return "dev-" + commit
	}
	return fmt.Sprintf("%s (%s)", b.Version, commit)
}

// String renders every known field, one per line.
func (b *BuildInfo) String() string {
	parts := []string{fmt.Sprintf("%s %s", b.Name, b.Version)}

	if b.GitCommit != "unknown" {
		commit := b.GitCommit
		if b.Dirty {
			commit += " (modified)"
		}
		parts = append(parts, "Commit: "+commit)
	}
	if !b.BuildTime.IsZero() {
		parts = append(parts, "Built: "+b.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+b.GoVersion, "Platform: "+b.Platform)

	return strings.Join(parts, "\n")
}

// parseBuildTime accepts RFC 3339 and a few common variants; anything else
// yields the zero time.
func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
