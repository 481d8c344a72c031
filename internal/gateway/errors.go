package gateway

import (
	"errors"
	"net/http"
)

var (
	// ErrUnavailable covers transport failures talking to the backend.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrPermissionDenied is returned when the backend rejects the caller.
	ErrPermissionDenied = errors.New("permission denied")
)

const (
	CodeEmailInUse        = "email-already-in-use"
	CodeInvalidCredential = "invalid-credential"
	CodeUserNotFound      = "user-not-found"
	CodeInvalidEmail      = "invalid-email"
	CodeWeakPassword      = "weak-password"
	CodeTooManyRequests   = "too-many-requests"
	CodeExpiredToken      = "expired-token"
)

// AuthError is a failure reported by the auth gateway with a stable code.
type AuthError struct {
	Code string
	Err  error
}

func NewAuthError(code string) *AuthError {
	return &AuthError{Code: code}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth/" + e.Code + ": " + e.Err.Error()
	}
	return "auth/" + e.Code
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Status() int {
	switch e.Code {
	case CodeEmailInUse:
		return http.StatusConflict
	case CodeInvalidCredential, CodeExpiredToken:
		return http.StatusUnauthorized
	case CodeUserNotFound:
		return http.StatusNotFound
	case CodeInvalidEmail, CodeWeakPassword:
		return http.StatusBadRequest
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

var authMessages = map[string]string{
	CodeEmailInUse:        "An account with this email already exists",
	CodeInvalidCredential: "Invalid email or password",
	CodeUserNotFound:      "No account found with this email address",
	CodeInvalidEmail:      "Invalid email address",
	CodeWeakPassword:      "Password should be at least 6 characters",
	CodeTooManyRequests:   "Too many attempts. Please try again later",
	CodeExpiredToken:      "Your session has expired, please log in again",
}

// AuthMessage returns the user-facing text for an auth failure.
func AuthMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if msg, ok := authMessages[authErr.Code]; ok {
			return msg
		}
	}
	return "Something went wrong. Please try again"
}

// IsAuthCode reports whether err is an AuthError with the given code.
func IsAuthCode(err error, code string) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Code == code
}
