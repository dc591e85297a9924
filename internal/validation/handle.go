package validation

import (
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`^[0-9A-Za-z_]{3,50}$`)

// Handles may not look like addresses or invoices.
var reservedHandlePrefixes = []string{"1", "3", "bc1", "lnbc1"}

// ValidHandle reports whether h is a well-formed recipient handle.
func ValidHandle(h string) bool {
	if !handlePattern.MatchString(h) {
		return false
	}
	lower := strings.ToLower(h)
	for _, p := range reservedHandlePrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}
