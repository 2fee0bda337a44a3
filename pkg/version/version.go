// Package version reports the tcocalc build version.
package version

// Set at build time with
//
//	-ldflags "-X github.com/rshade/tcocalc/pkg/version.version=v1.2.3"
//
//nolint:gochecknoglobals // Overridden by the linker.
var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

// GetVersion returns the semantic version, or "dev" for local builds.
func GetVersion() string {
	return version
}

// GetCommit returns the git commit the binary was built from, if known.
func GetCommit() string {
	return commit
}

// GetBuildDate returns the build timestamp, if known.
func GetBuildDate() string {
	return buildDate
}
