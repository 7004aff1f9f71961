package main

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatScore renders a confidence or threshold with the precision decisions
// are made at.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// formatWeight renders a factor weight.
func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
