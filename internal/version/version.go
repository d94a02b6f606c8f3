// Package version provides version information for the svcs binary.
package version

import (
	_ "embed"
	"strings"
)

// VERSION contains the version from the embedded VERSION file; Get and
// Analyzer both derive from it.
//
//go:embed VERSION
var VERSION string

// Get returns the version with "v" prefix.
func Get() string {
	return "v" + strings.TrimSpace(VERSION)
}

// Analyzer returns the producer identifier recorded in note payloads.
func Analyzer() string {
	return "svcs-go/" + strings.TrimSpace(VERSION)
}
