package service

import (
	"fmt"
	"net/http"
)

// AuthError is the only error type the dispatcher hands to the transport
// layer. Description is safe to show to callers; anything more specific stays
// in server-side logs.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAuthError(code, desc string, status int) *AuthError {
	return &AuthError{Code: code, Description: desc, Status: status}
}

// The two deliberately generic credential failures. Unknown account and wrong
// password share one message, as do every flavor of session rejection, so
// responses cannot be used as an enumeration oracle.
func errInvalidCredentials() *AuthError {
	return newAuthError("invalid_credentials", "invalid email or password", http.StatusUnauthorized)
}

func errInvalidSession() *AuthError {
	return newAuthError("invalid_session", "invalid or expired session", http.StatusUnauthorized)
}

func errInternal() *AuthError {
	return newAuthError("server_error", "internal error", http.StatusInternalServerError)
}
