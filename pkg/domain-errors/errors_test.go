package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_DirectAndWrapped(t *testing.T) {
	base := New(CodeNotFound, "profile missing")
	assert.True(t, HasCode(base, CodeNotFound))
	assert.False(t, HasCode(base, CodeConflict))

	wrapped := fmt.Errorf("lookup failed: %w", base)
	assert.True(t, HasCode(wrapped, CodeNotFound))

	rewrapped := Wrap(wrapped, CodeInternal, "registry read")
	assert.True(t, HasCode(rewrapped, CodeInternal))
	assert.True(t, HasCode(rewrapped, CodeNotFound), "inner code should survive wrapping")
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "store unavailable")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, err.Code())
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCodeOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad weight")))
}
