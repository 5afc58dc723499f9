package apperror

import (
	"errors"
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

// Transient reports whether the operation failed before taking effect and may be retried as is.
func (e *AppError) Transient() bool {
	return e.Code == CodeLockTimeout
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

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

const (
	CodeInvalidAmount          = "LEDGER_001"
	CodeInvalidWithdrawal      = "LEDGER_002"
	CodeInvalidTransferDetails = "LEDGER_003"
	CodeRecipientNotFound      = "LEDGER_004"
	CodeInsufficientBalance    = "LEDGER_005"
	CodeNotFound               = "LEDGER_006"

	CodeInvalidCredentials = "AUTH_001"
	CodeUsernameExists     = "AUTH_002"
	CodeInvalidToken       = "AUTH_003"
	CodeForbidden          = "AUTH_004"

	CodeRateLimitExceeded = "RATE_001"

	CodeIdempotencyKeyMissing = "IDEM_001"
	CodeRequestInProgress     = "IDEM_002"

	CodeDatabaseError = "SYS_001"
	CodeLockTimeout   = "SYS_002"

	CodeValidation = "REQ_001"
)

// ---- Ledger Business Logic (LEDGER) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidWithdrawal() *AppError {
	return New(CodeInvalidWithdrawal, "Invalid withdrawal amount or insufficient balance", http.StatusBadRequest)
}

func ErrInvalidTransferDetails() *AppError {
	return New(CodeInvalidTransferDetails, "Invalid transfer details", http.StatusBadRequest)
}

func ErrRecipientNotFound() *AppError {
	return New(CodeRecipientNotFound, "Recipient not found", http.StatusNotFound)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New(CodeUsernameExists, "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Admin privileges required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Idempotency (IDEM) ----

func ErrIdempotencyKeyMissing() *AppError {
	return New(CodeIdempotencyKeyMissing, "Idempotency-Key header is required", http.StatusBadRequest)
}

func ErrRequestInProgress() *AppError {
	return New(CodeRequestInProgress, "A request with this Idempotency-Key is already in progress", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeDatabaseError, "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Ledger is busy, retry the operation", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeDatabaseError, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
