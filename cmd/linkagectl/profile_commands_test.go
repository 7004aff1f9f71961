package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkage/internal/profile"
)

func TestProfileList_ShowsBuiltins(t *testing.T) {
	stdout, _, err := runCLI(t, "profile", "list")
	require.NoError(t, err)

	assert.Contains(t, stdout, "bank-transactions")
	assert.Contains(t, stdout, "claims-payments")
	assert.Contains(t, stdout, "generic-records")
	assert.Contains(t, stdout, "0.9500")
}

func TestProfileList_JSON(t *testing.T) {
	stdout, _, err := runCLI(t, "profile", "list", "--json")
	require.NoError(t, err)

	var profiles []profile.Profile
	require.NoError(t, json.Unmarshal([]byte(stdout), &profiles))
	require.Len(t, profiles, 3)

	assert.Equal(t, "bank-transactions", profiles[0].Meta.ID)
	assert.InDelta(t, 0.95, profiles[0].Thresholds.AutoLink, 1e-9)
	assert.Len(t, profiles[0].Factors, 4)
}

func TestProfileList_IncludesOperatorDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice-matching.toml"), []byte(operatorProfile), 0o644))

	stdout, _, err := runCLI(t, "--profiles-dir", dir, "profile", "list")
	require.NoError(t, err)

	assert.Contains(t, stdout, "invoice-matching")
	assert.Contains(t, stdout, "bank-transactions", "builtins stay registered next to operator profiles")
}

func TestProfileShow_RendersFactorsAndThresholds(t *testing.T) {
	stdout, _, err := runCLI(t, "profile", "show", "bank-transactions")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Bank transactions")
	assert.Contains(t, stdout, "auto_link 0.9500, auto_suggest 0.7000, manual 0.5000")
	assert.Contains(t, stdout, "amount_proximity")
	assert.Contains(t, stdout, "opposite_sign")
	assert.Contains(t, stdout, "account_match")
	assert.NotContains(t, stdout, "Blocking bounds", "no factor blocks in this profile")
}

func TestProfileShow_RendersBlockingBounds(t *testing.T) {
	stdout, _, err := runCLI(t, "profile", "show", "claims-payments")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Blocking bounds")
	assert.Contains(t, stdout, "claim_number")
}

func TestProfileShow_UnknownProfile(t *testing.T) {
	_, _, err := runCLI(t, "profile", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "nope"`)
}

func TestProfileValidate_AcceptsWellFormedDocument(t *testing.T) {
	path := writeDocument(t, "invoice-matching.toml", operatorProfile)

	stdout, _, err := runCLI(t, "profile", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, fmt.Sprintf("%s: ok (invoice-matching, 2 factors)", path))
}

func TestProfileValidate_ReportsEveryFailure(t *testing.T) {
	good := writeDocument(t, "good.toml", operatorProfile)
	bad := writeDocument(t, "bad.toml", invertedThresholdsProfile)

	stdout, _, err := runCLI(t, "profile", "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 profile documents failed validation")
	assert.Contains(t, stdout, "good.toml: ok")
	assert.Contains(t, stdout, "bad.toml:")
}
