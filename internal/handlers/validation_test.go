package handlers

import (
	"testing"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest_ReportsJSONFieldName(t *testing.T) {
	err := ValidateRequest(&CheckLoginAttemptRequest{})

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "Email is required", ve.Message)
}

func TestValidateRequest_MaxLength(t *testing.T) {
	long := make([]byte, 321)
	for i := range long {
		long[i] = 'a'
	}

	err := ValidateRequest(&CheckLoginAttemptRequest{Email: string(long)})

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Email must have a maximum of 320 characters", ve.Message)
}

func TestValidateRequest_Valid(t *testing.T) {
	assert.NoError(t, ValidateRequest(&CheckLoginAttemptRequest{Email: "a@x.com"}))
}
