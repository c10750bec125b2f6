// Package version exposes build-time version metadata for the stormtrack binary.
package version

// Values are injected at build time via -ldflags.
var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// UserAgent returns the courtesy User-Agent string sent to upstream origins.
func UserAgent() string {
	return "stormtrack/" + Version + " (tropical cyclone tracking)"
}
