// Package buildinfo holds build-time version metadata injected via ldflags.
package buildinfo

var (
	// Version is the semantic version of this build.
	Version = "dev"
	// Commit is the git commit hash of this build.
	Commit = "none"
	// BuildDate is the UTC timestamp of this build.
	BuildDate = "unknown"
)
