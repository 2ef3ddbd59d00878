package version

import "fmt"

// product is the name reported in the User-Agent header and version output.
const product = "schedule-watch"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.3.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s", product, Version, Commit, BuildTime)
}

// UserAgent identifies the checker to the server hosting the schedule.
func UserAgent() string {
	return product + "/" + Version
}
