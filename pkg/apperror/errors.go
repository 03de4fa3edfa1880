package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (LED) ----

// ErrUnauthorized is returned when the caller lacks the required privilege:
// a non-admin invoking an admin operation, or a caller other than the bound
// issuer asking the registry to mint or burn.
func ErrUnauthorized() *AppError {
	return New("LED_001", "Caller lacks the required privilege", http.StatusForbidden)
}

func ErrZeroAmount() *AppError {
	return New("LED_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrRateTooHigh(ceilingBps int32) *AppError {
	return New("LED_003", fmt.Sprintf("Rate exceeds ceiling of %d bps", ceilingBps), http.StatusBadRequest)
}

func ErrDuplicateCertificate(id int64) *AppError {
	return New("LED_004", fmt.Sprintf("Certificate %d already exists", id), http.StatusConflict)
}

func ErrCertificateNotFound(id int64) *AppError {
	return New("LED_005", fmt.Sprintf("Certificate %d not found", id), http.StatusNotFound)
}

// ErrPositionNotActive covers positions that never existed as well as
// positions already closed. It is also the signal a reentrant withdrawal
// observes.
func ErrPositionNotActive(id int64) *AppError {
	return New("LED_006", fmt.Sprintf("Position %d is not active", id), http.StatusConflict)
}

func ErrNotCertificateHolder() *AppError {
	return New("LED_007", "Caller does not hold the certificate", http.StatusForbidden)
}

// ErrTransferFailed means the outbound fund movement did not complete; the
// enclosing operation must roll back as a unit.
func ErrTransferFailed(err error) *AppError {
	return Wrap("LED_008", "Fund transfer failed", http.StatusConflict, err)
}

// ErrInsufficientFunds means the depositor's own balance cannot cover the
// amount being locked. Distinct from LED_008, which covers fund movements
// inside an already-accepted operation.
func ErrInsufficientFunds() *AppError {
	return New("LED_009", "Insufficient balance in account", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_011", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrParticipantSuspended() *AppError {
	return New("AUTH_004", "Participant account is suspended", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_010-style validation error.
func Validation(message string) *AppError {
	return New("LED_010", message, http.StatusBadRequest)
}
