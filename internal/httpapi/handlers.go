// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/lockbridge/lockbridge/internal/auth"
	"github.com/lockbridge/lockbridge/pkg/errutil"
)

// Client-facing messages. The reset message is deliberately identical for
// known and unknown emails so responses carry no account-existence signal.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgAccountExists      = "User already exists"
	msgAccountLocked      = "Account is temporarily locked"
	msgResetSent          = "If the email exists, reset instructions have been sent."
	msgInvalidResetToken  = "Invalid or expired reset token"
	msgInternalError      = "Internal server error"
	msgUnauthorized       = "Unauthorized"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// userPayload is the wire shape of a user. The password hash never leaves
// the server.
type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionPayload struct {
	ID         string    `json:"id"`
	UserAgent  string    `json:"user_agent"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toUserPayload(u *auth.User) *userPayload {
	if u == nil {
		return nil
	}
	return &userPayload{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON parses the request body into v. A malformed body is a client
// error, reported as 400 with a generic message.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// clientIP strips the port from RemoteAddr. Falls back to the raw value for
// non-host:port addresses (unix sockets, tests).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeServiceError maps an auth service error onto an HTTP response.
// Storage faults collapse to a generic 500; the real cause goes to the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch errutil.Code(err) {
	case "AUTH_INVALID_EMAIL":
		s.recordAuth(op, "rejected")
		writeError(w, http.StatusBadRequest, "Invalid email address")
	case "AUTH_INVALID_PASSWORD":
		s.recordAuth(op, "rejected")
		writeError(w, http.StatusBadRequest, "Password does not meet requirements")
	case "AUTH_INVALID_CREDENTIALS":
		s.recordAuth(op, "rejected")
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case "AUTH_ACCOUNT_EXISTS":
		s.recordAuth(op, "rejected")
		writeError(w, http.StatusConflict, msgAccountExists)
	case "AUTH_ACCOUNT_LOCKED":
		s.recordAuth(op, "locked")
		writeError(w, http.StatusForbidden, msgAccountLocked)
	case "RESET_TOKEN_EMPTY", "RESET_TOKEN_INVALID", "RESET_TOKEN_EXPIRED":
		s.recordAuth(op, "rejected")
		writeError(w, http.StatusBadRequest, msgInvalidResetToken)
	default:
		s.recordAuth(op, "error")
		errutil.LogError(r.Context(), s.logger, op+" failed", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// handleSignup registers a new account and logs it in immediately.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		s.recordAuth("signup", "rejected")
		return
	}

	session, token, user, err := s.auth.Signup(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, "signup", err)
		return
	}

	s.recordAuth("signup", "ok")
	s.recordIssued("signup")
	s.setSessionCookie(w, token, time.Until(session.ExpiresAt))
	writeJSON(w, http.StatusCreated, map[string]*userPayload{"user": toUserPayload(user)})
}

// handleLogin authenticates credentials and issues a fresh session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		s.recordAuth("login", "rejected")
		return
	}

	session, token, user, err := s.auth.Login(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, "login", err)
		return
	}

	s.recordAuth("login", "ok")
	s.recordIssued("login")
	s.setSessionCookie(w, token, time.Until(session.ExpiresAt))
	writeJSON(w, http.StatusOK, map[string]*userPayload{"user": toUserPayload(user)})
}

// handleLogout revokes the current session and clears the cookie.
// Always responds 204: logging out with no session, a stale cookie, or even
// a storage fault behind revocation leaves the client in the same signed-out
// state.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)

	if err := s.auth.Logout(r.Context(), token); err != nil {
		errutil.LogError(r.Context(), s.logger, "logout failed", err)
		s.recordAuth("logout", "error")
	} else {
		s.recordAuth("logout", "ok")
		if token != "" {
			s.recordRevoked("logout")
		}
	}

	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe reports the authenticated user, or null when the request carries
// no valid session. Both shapes are 200: "who am I" has an answer either way.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Resolve(r.Context(), sessionToken(r))
	if err != nil {
		s.writeServiceError(w, r, "resolve", err)
		return
	}

	s.recordAuth("resolve", "ok")
	writeJSON(w, http.StatusOK, map[string]*userPayload{"user": toUserPayload(user)})
}

// handleForgotPassword starts the reset flow. The response is the same for
// known and unknown emails.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		s.recordAuth("reset_request", "rejected")
		return
	}

	token, err := s.resets.Request(r.Context(), req.Email)
	if err != nil {
		s.writeServiceError(w, r, "reset_request", err)
		return
	}

	if token != "" {
		// Token delivery (email) is out of band. Log the event without the
		// token itself.
		s.logger.InfoContext(r.Context(), "password reset requested", "email", req.Email)
	}

	s.recordAuth("reset_request", "ok")
	writeJSON(w, http.StatusOK, map[string]string{"message": msgResetSent})
}

// handleResetPassword completes the reset flow with a token from the email.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		s.recordAuth("reset_confirm", "rejected")
		return
	}

	if err := s.resets.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		s.writeServiceError(w, r, "reset_confirm", err)
		return
	}

	s.recordAuth("reset_confirm", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// handleListSessions lists the caller's active sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	sessions, err := s.sessions.GetByUser(r.Context(), user.ID)
	if err != nil {
		errutil.LogError(r.Context(), s.logger, "list sessions failed", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	payload := make([]sessionPayload, 0, len(sessions))
	for _, sess := range sessions {
		if sess.IsExpired() {
			continue
		}
		payload = append(payload, sessionPayload{
			ID:         sess.ID.String(),
			UserAgent:  sess.UserAgent,
			IPAddress:  sess.IPAddress,
			CreatedAt:  sess.CreatedAt,
			LastSeenAt: sess.LastSeenAt,
			ExpiresAt:  sess.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string][]sessionPayload{"sessions": payload})
}
