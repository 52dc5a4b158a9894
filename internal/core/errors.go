// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenInvalid = errors.New("token invalid")
)

const (
	MsgNotFound          = "Not found."
	MsgNotAuthenticated  = "Authentication credentials were not provided."
	MsgPermissionDenied  = "You do not have permission to perform this action."
	MsgServerError       = "A server error occurred."
	MsgMalformedRequest  = "JSON parse error."
	MsgInvalidCredential = "No active account found with the given credentials"
)

// AppError carries the HTTP status and public message for a failure. The
// wrapped Err stays internal.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = MsgNotAuthenticated
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "not_authenticated")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = MsgPermissionDenied
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "permission_denied")
}

func TokenExpiredError() *AppError {
	return NewAppError(
		ErrTokenExpired,
		"Token is expired",
		http.StatusUnauthorized,
		"token_not_valid",
	)
}

func TokenRevokedError() *AppError {
	return NewAppError(
		ErrTokenRevoked,
		"Token is blacklisted",
		http.StatusUnauthorized,
		"token_not_valid",
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"Token is invalid or expired",
		http.StatusUnauthorized,
		"token_not_valid",
	)
}
