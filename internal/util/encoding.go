package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeParam returns the canonical form of a user-supplied query value:
// surrounding whitespace trimmed and Unicode composed (NFC), so "café" typed
// either way maps to the same cache key.
func NormalizeParam(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
