// Package version exposes build metadata for the relay daemon.
// The variables are overridden at build time via -ldflags.
package version

import "fmt"

var (
	// VersionTag is the semantic version of this build
	VersionTag = "0.3.0-dev"

	// CommitHash is the git commit this binary was built from
	CommitHash = "unknown"

	// BuildTime is the UTC timestamp of the build
	BuildTime = "unknown"
)

// Info bundles the build metadata.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit"`
	BuildTime  string `json:"build_time"`
}

// Get returns the build metadata for this binary.
func Get() Info {
	return Info{
		Version:    VersionTag,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
	}
}

// Short returns a compact single-line version string.
func (i Info) Short() string {
	if i.CommitHash == "unknown" {
		return i.Version
	}
	commit := i.CommitHash
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return fmt.Sprintf("%s (%s)", i.Version, commit)
}
