package util

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s for case-insensitive comparison.
// cases.Caser is stateful and not shared between calls.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Ellipsis truncates s to at most n runes, marking the cut with "…".
func Ellipsis(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
