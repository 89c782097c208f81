// Package excerpt shortens free-form upstream payloads (provider error
// bodies, engine messages) so they fit on a single log or table line.
package excerpt

import "strings"

// DefaultLen is the length used for provider bodies in logs and CLI output.
const DefaultLen = 120

// minLen leaves room for one rune plus the ellipsis.
const minLen = 4

// Line collapses all whitespace in s to single spaces and cuts the result
// to at most n runes, marking a cut with "...".
func Line(s string, n int) string {
	if n < minLen {
		n = minLen
	}
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Bytes is Line for raw response bodies.
func Bytes(b []byte, n int) string {
	return Line(string(b), n)
}
