package identity

import (
	"testing"

	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"meets all requirements", "Secret123", true},
		{"too short", "Ab1", false},
		{"no upper case", "secret123", false},
		{"no lower case", "SECRET123", false},
		{"no digit", "SecretPass", false},
		{"empty", "", false},
		{"long with unicode letters", "Straße99x", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Contains(t, apperrors.FieldsOf(err), "password")
		})
	}
}
