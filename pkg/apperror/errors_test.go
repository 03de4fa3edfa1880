package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_002", "Amount must be greater than zero", http.StatusBadRequest),
			expected: "[LED_002] Amount must be greater than zero",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("LED_002", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Unauthorized", ErrUnauthorized(), "LED_001", 403},
		{"ZeroAmount", ErrZeroAmount(), "LED_002", 400},
		{"RateTooHigh", ErrRateTooHigh(5000), "LED_003", 400},
		{"DuplicateCertificate", ErrDuplicateCertificate(7), "LED_004", 409},
		{"CertificateNotFound", ErrCertificateNotFound(7), "LED_005", 404},
		{"PositionNotActive", ErrPositionNotActive(7), "LED_006", 409},
		{"NotCertificateHolder", ErrNotCertificateHolder(), "LED_007", 403},
		{"InsufficientFunds", ErrInsufficientFunds(), "LED_009", 402},
		{"Validation", Validation("invalid amount"), "LED_010", 400},
		{"NotFound", ErrNotFound("Account"), "LED_011", 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestTransferFailed_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("reserve short by 42")
	err := ErrTransferFailed(cause)
	assert.Equal(t, "LED_008", err.Code)
	assert.Equal(t, 409, err.HTTPStatus)
	assert.True(t, errors.Is(err, cause))
}

func TestRateTooHigh_MentionsCeiling(t *testing.T) {
	err := ErrRateTooHigh(5000)
	assert.Contains(t, err.Message, "5000")
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"UsernameExists", ErrUsernameExists(), "AUTH_002", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"ParticipantSuspended", ErrParticipantSuspended(), "AUTH_004", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	lockErr := ErrLockTimeout(inner)
	assert.Equal(t, "SYS_002", lockErr.Code)
	assert.Equal(t, 503, lockErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}
