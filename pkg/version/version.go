package version

import (
	_ "embed"
)

//go:embed VERSION
var Version string

// Get returns the build version embedded at compile time.
func Get() string {
	return Version
}
