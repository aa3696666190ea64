// Package strings holds small list helpers shared by configuration parsing.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims every element, drops empties, and keeps the first
// occurrence of each value. First-seen order is preserved, so broker lists
// and similar config values stay in the order they were written.
//
// Inputs are short env-derived lists; the linear duplicate scan is fine.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
