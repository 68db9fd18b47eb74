package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := NotFound("line %d not found", 5)
	wrapped := fmt.Errorf("while handling request: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestWithFieldAccumulates(t *testing.T) {
	err := Validation("bad input").
		WithField("name", "name is required").
		WithField("workCenterIds", "work centers not found or inactive: [7]").
		WithField("name", "name must be unique")

	fields := FieldsOf(err)
	require.Len(t, fields, 2)
	assert.Equal(t, []string{"name is required", "name must be unique"}, fields["name"])
}

func TestInternalKeepsCauseOutOfKindButInChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to get line", cause)

	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to get line")
}

func TestKindCodes(t *testing.T) {
	cases := map[Kind]string{
		KindNotFound:         "not_found",
		KindValidation:       "validation_failed",
		KindConflict:         "conflict",
		KindPermissionDenied: "permission_denied",
		KindUnauthorized:     "unauthorized",
		KindInternal:         "internal_error",
	}
	for kind, code := range cases {
		assert.Equal(t, code, kind.String())
	}
}
