package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrappedSentinels(t *testing.T) {
	err := NotFound("label not found", goerr.V(IDKey, "abc"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrActionDisallowed))

	wrapped := fmt.Errorf("handler: %w", Disallowed("delete disabled"))
	assert.True(t, errors.Is(wrapped, ErrActionDisallowed))

	c := Conflict(errors.New("UNIQUE constraint failed"), "duplicate label")
	assert.True(t, errors.Is(c, ErrConflict))
}

func TestValidationError(t *testing.T) {
	ve := &ValidationError{}
	require.True(t, ve.Empty())
	ve.Add("name", "required")
	ve.Add("name", "too long")
	ve.Add("color", "invalid color")

	assert.Equal(t, "required", ve.Fields["name"])
	assert.Equal(t, "validation failed: color: invalid color, name: required", ve.Error())

	got, ok := AsValidation(fmt.Errorf("wrap: %w", ve))
	require.True(t, ok)
	assert.Same(t, ve, got)
}
