package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, fields)
}

func TestStandardError_UnwrapAndAs(t *testing.T) {
	cause := stderrors.New("invalid_grant")
	err := fmt.Errorf("login: %w", NewAuthFailedError("Invalid user credentials", cause))

	stdErr, ok := AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAuthFailed, stdErr.Code)
	assert.Equal(t, "Invalid user credentials", stdErr.Message)
	assert.Equal(t, "invalid_grant", stdErr.Details)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, HasCode(err, ErrCodeAuthFailed))
	assert.False(t, HasCode(err, ErrCodeSignUpFailed))
}

func TestConstructors_DefaultMessages(t *testing.T) {
	assert.Equal(t, "Sign in failed", NewAuthFailedError("", nil).Message)
	assert.Equal(t, "Logout failed. Please try again.", NewSignOutFailedError(stderrors.New("x")).Message)
	assert.True(t, NewSignOutFailedError(nil).Retryable)
	assert.Contains(t, NewAccountInactiveError("u1").Details, "u1")
	assert.Equal(t, "hazards/h1", NewDocumentNotFoundError("hazards", "h1").Details)
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		category  string
		retryable bool
	}{
		{ErrCodeAuthFailed, "AUTHENTICATION", false},
		{ErrCodeAuthProviderUnavailable, "AUTHENTICATION", true},
		{ErrCodeStorageWriteFailed, "PERSISTENCE", true},
		{ErrCodeDocumentNotFound, "DOCUMENT_DATABASE", false},
		{ErrCodeHazardValidationFailed, "VALIDATION", false},
		{ErrCodeSearchQueryFailed, "HAZARDS", true},
		{ErrCodeGeocodeNoResults, "GEOCODING", false},
		{ErrorCode("SOMETHING_ELSE"), "UNKNOWN", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.category, GetErrorCategory(tt.code))
			assert.Equal(t, tt.retryable, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestErrorHandler_Handle(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	assert.Nil(t, h.Handle("noop", nil))

	got := h.Handle("login", stderrors.New("boom"))
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.Equal(t, "boom", got.Details)

	got = h.Handle("login", NewAccountInactiveError("u9"))
	assert.Equal(t, ErrCodeAccountInactive, got.Code)

	require.Len(t, log.messages, 2)
	assert.Equal(t, "login", log.messages[1]["operation"])
	assert.Equal(t, "AUTHENTICATION", log.messages[1]["errorCategory"])
}
