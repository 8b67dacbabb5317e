package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/session"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

// AuthServiceInterface defines the interface for credential checks
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password, loginType, ip, userAgent string) (session.Identity, error)
}

// AuthHandler handles session endpoints: login, logout and identity echo.
type AuthHandler struct {
	service  AuthServiceInterface
	sessions *session.Store
	secret   string
	cookie   session.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, sessions *session.Store, secret string, cookie session.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		secret:   secret,
		cookie:   cookie,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	LoginType string `json:"loginType" validate:"required"`
}

// IdentityResponse represents the session identity in HTTP responses
type IdentityResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func identityToResponse(identity session.Identity) *IdentityResponse {
	return &IdentityResponse{
		ID:       identity.ID,
		Username: identity.Username,
		Name:     identity.Name,
		Role:     identity.Role,
	}
}

// Login verifies credentials and binds a fresh session. Any cookie presented
// with the login request is discarded, never upgraded, so a pre-planted
// token cannot be promoted to an authenticated session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r)
	userAgent := r.UserAgent()

	identity, err := h.service.Login(r.Context(), req.Username, req.Password, req.LoginType, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid login type")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid credentials or account inactive")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	oldToken := ""
	if value, err := session.GetSessionCookie(r); err == nil {
		if token, ok := session.VerifyToken(value, h.secret); ok {
			oldToken = token
		}
	}

	token, err := h.sessions.Regenerate(oldToken, identity)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	session.SetSessionCookie(w, session.SignToken(token, h.secret), h.cookie)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    identityToResponse(identity),
	})
}

// Me returns the authenticated identity
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.GetIdentity(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    identityToResponse(identity),
	})
}

// Logout destroys the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := gate.GetSessionToken(r); token != "" {
		h.sessions.Destroy(token)
	}
	session.ClearSessionCookie(w, h.cookie)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
