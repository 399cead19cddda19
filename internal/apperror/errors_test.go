package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{RateLimited(time.Second), http.StatusTooManyRequests},
		{EmailRateLimited(time.Second), http.StatusTooManyRequests},
		{Validation([]string{"x"}), http.StatusBadRequest},
		{UserExists(), http.StatusConflict},
		{InvalidCredentials(), http.StatusUnauthorized},
		{NoAuthCookie(), http.StatusUnauthorized},
		{NoAuthToken(), http.StatusUnauthorized},
		{InvalidToken(), http.StatusUnauthorized},
		{SessionNotFound(), http.StatusUnauthorized},
		{UserNotFound(), http.StatusNotFound},
		{UserDeactivated(), http.StatusForbidden},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{New(Code("UNKNOWN"), "?"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(string(tc.err.Code), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.HTTPStatus())
		})
	}
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", SessionNotFound())

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeSessionNotFound, appErr.Code)
	assert.True(t, Is(wrapped, CodeSessionNotFound))
	assert.False(t, Is(errors.New("plain"), CodeSessionNotFound))
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 2, RateLimited(1500*time.Millisecond).RetryAfterSeconds())
	assert.Equal(t, 0, RateLimited(0).RetryAfterSeconds())
}

func TestToErrorResponse_HidesInternalDetail(t *testing.T) {
	status, resp := ToErrorResponse(errors.New("dial tcp 10.0.0.3:3306: connection refused"), "req-9")

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, resp.Error.Code)
	assert.Equal(t, "Internal server error", resp.Error.Message)
	assert.Equal(t, "req-9", resp.Error.RequestID)
	assert.NotContains(t, resp.Error.Message, "3306")
}

func TestToErrorResponse_Validation(t *testing.T) {
	status, resp := ToErrorResponse(Validation([]string{"email is required"}), "req-1")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"email is required"}, resp.Error.Details)
}

func TestFromStatus(t *testing.T) {
	assert.Equal(t, CodeNotFound, FromStatus(http.StatusNotFound, nil).Code)
	assert.Equal(t, CodeMethodNotAllowed, FromStatus(http.StatusMethodNotAllowed, nil).Code)
	assert.Equal(t, CodePayloadTooLarge, FromStatus(http.StatusRequestEntityTooLarge, nil).Code)
	assert.Equal(t, CodeInvalidRequest, FromStatus(http.StatusUnsupportedMediaType, nil).Code)
	assert.Equal(t, CodeInternal, FromStatus(http.StatusBadGateway, errors.New("x")).Code)
}
