// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList parses a comma-separated value into its entries, trimming
// whitespace, dropping empties, and removing duplicates. Order of first
// appearance is preserved. Returns nil for a blank input.
//
// Example:
//
//	SplitList(" kafka-1:9092, kafka-2:9092 ,kafka-1:9092,")
//	// Returns: []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	entries := make([]string, 0, len(parts))

	for _, p := range parts {
		entry := strings.TrimSpace(p)
		if entry == "" {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
	}

	return entries
}
