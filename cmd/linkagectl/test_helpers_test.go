package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against buffers and returns stdout,
// stderr, and the execution error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, nil, args...)
}

func runCLIWithInput(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeDocument drops content into a temp file and returns its path.
func writeDocument(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const operatorProfile = `
[profile]
id = "invoice-matching"
name = "Invoice matching"
entity_kind = "invoice"

[thresholds]
auto_link = 0.93
auto_suggest = 0.72
manual = 0.50

[[factors]]
kind = "amount_proximity"
field = "total"
weight = 0.6
cutoff = 0.01

[[factors]]
kind = "exact_field"
name = "po_number"
field = "po_number"
weight = 0.4
fold = true
`

// invertedThresholdsProfile fails validation: the suggest floor sits above
// the link floor.
const invertedThresholdsProfile = `
[profile]
id = "broken"

[thresholds]
auto_link = 0.60
auto_suggest = 0.80
manual = 0.40

[[factors]]
kind = "exact_field"
field = "ref"
weight = 1.0
`
