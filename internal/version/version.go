// Package version holds build information set by compiler flags at link time.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// FullVersion returns the full version string including git commit and build time.
func FullVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}

// UserAgent returns the string sent as the HTTP User-Agent header on every
// vendor call.
func UserAgent() string {
	return fmt.Sprintf("AccountingGateway/%s", Version)
}
