package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/communities-core/internal/auth"
)

// registerRequest is the request body for POST /auth/register.
type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        *auth.User `json:"user"`
}

// tokenRequest carries a security token value.
type tokenRequest struct {
	Token string `json:"token"`
}

// emailRequest carries an email address.
type emailRequest struct {
	Email string `json:"email"`
}

// resetPasswordRequest is the request body for POST /auth/password-reset/confirm.
type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleRegister creates an account and mails a confirmation link.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		s.writeFailure(w, r, "registering account", err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogin checks credentials and returns a bearer credential.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	access, user, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeFailure(w, r, "logging in", err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: access.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(access.ExpiresAt).Seconds()),
		ExpiresAt:   access.ExpiresAt,
		User:        user,
	})
}

// handleConfirmEmail redeems an email confirmation token.
func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.accounts.ConfirmEmail(r.Context(), req.Token); err != nil {
		s.writeFailure(w, r, "confirming email", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// handleResendConfirmation mails a fresh confirmation link. The response
// is the same whether or not the address is registered.
func (s *Server) handleResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.accounts.ResendConfirmation(r.Context(), req.Email); err != nil {
		s.writeFailure(w, r, "resending confirmation", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRequestPasswordReset mails a reset link. The response is the same
// whether or not the address is registered.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeFailure(w, r, "requesting password reset", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleResetPassword redeems a reset token and sets the new password.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		s.writeFailure(w, r, "resetting password", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

// handleMe returns the signed-in user's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	user, err := s.accounts.Profile(r.Context(), identity)
	if err != nil {
		s.writeFailure(w, r, "loading profile", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// writeFailure writes the response for a failed operation, logging
// anything that is not a recognised domain error.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	if writeDomainError(w, err) {
		return
	}
	s.logger.Error(op+" failed",
		"error", err,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeInternalError(w, "internal server error")
}
