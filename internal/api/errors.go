package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/communities-core/internal/account"
	"github.com/nerrad567/communities-core/internal/auth"
	"github.com/nerrad567/communities-core/internal/community"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeInvalidToken   = "invalid_token"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// denyRequest is the authorization filter's rejection writer. The body
// never says why the request was denied.
func denyRequest(w http.ResponseWriter, _ *http.Request, status int) {
	code := ErrCodeForbidden
	if status == http.StatusUnauthorized {
		code = ErrCodeUnauthorized
	}
	writeError(w, status, code, "access denied")
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps account, auth, and community errors to responses.
// It reports false for errors it does not recognise.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, community.ErrInvalidName):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, community.ErrAlreadyAdmin):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
	case errors.Is(err, auth.ErrUserInactive),
		errors.Is(err, auth.ErrEmailUnconfirmed):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, auth.ErrTokenNotFound),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenAlreadyUsed),
		errors.Is(err, auth.ErrTokenTypeMismatch):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, err.Error())
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, community.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, community.ErrCommunityNotFound):
		writeNotFound(w, "community not found")
	default:
		return false
	}
	return true
}
