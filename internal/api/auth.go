package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/store"
)

// AuthHandler handles demo login, session inspection and logout.
type AuthHandler struct {
	Demo          auth.Demo
	DemoEnabled   bool
	Tokens        store.TokenStore
	SecureCookies bool
	Now           func() time.Time
}

type demoLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token  string `json:"token,omitempty"`
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// DemoLogin handles POST /api/auth/demo.
func (h *AuthHandler) DemoLogin(w http.ResponseWriter, r *http.Request) {
	if !h.DemoEnabled || !h.Demo.Enabled() {
		jsonError(w, http.StatusNotFound, "demo login is not available")
		return
	}

	var req demoLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	token, err := h.Demo.Login(req.Username, req.Password, h.Now())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredential) {
			slog.Warn("demo login failed", "username", req.Username, "remote", r.RemoteAddr)
			jsonError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, h.SecureCookies))
	slog.Info("demo login", "user", req.Username)
	jsonResponse(w, http.StatusOK, sessionResponse{Token: token, UserID: token})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, sessionResponse{UserID: caller.UserID, Email: caller.Email})
}

// Logout handles POST /api/auth/logout. The credential is revoked until it
// would have expired anyway and the session cookie is cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	credential := credentialFrom(r.Context())
	if credential == "" {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expires := auth.ExpiresAt(credential, h.Now())
	if err := h.Tokens.RevokeToken(r.Context(), auth.CredentialKey(credential), expires); err != nil {
		writeError(w, r, apperr.Unavailable("revoking credential", err))
		return
	}

	http.SetCookie(w, auth.ClearedCookie(h.SecureCookies))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
