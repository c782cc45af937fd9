// Package version holds build metadata, overridable at link time via
// -ldflags "-X".
package version

var (
	// Version is the release version
	Version = "0.3.0"
	// Commit is the git commit the binary was built from
	Commit = "unknown"
	// Date is the build date
	Date = "unknown"
)
