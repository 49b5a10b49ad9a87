// Package device defines the client device identity shared across components
package device

import "regexp"

// idPattern is the allow-list for client-supplied device identifiers.
// Identifiers are opaque keys, never generated server-side, and must be
// validated before any lookup or storage use.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is an acceptable device identifier
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
