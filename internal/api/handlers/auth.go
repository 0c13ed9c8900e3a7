package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/api/middleware"
	"github.com/Togather-Foundation/eventhost/internal/audit"
	"github.com/Togather-Foundation/eventhost/internal/auth"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
)

type AuthHandler struct {
	Users          *users.Service
	Tokens         *auth.JWTManager
	Cookie         middleware.SessionCookie
	Audit          *audit.Logger
	TrustedProxies []string
	Env            string
}

func NewAuthHandler(usersService *users.Service, tokens *auth.JWTManager, cookie middleware.SessionCookie, auditLogger *audit.Logger, trustedProxies []string, env string) *AuthHandler {
	return &AuthHandler{
		Users:          usersService,
		Tokens:         tokens,
		Cookie:         cookie,
		Audit:          auditLogger,
		TrustedProxies: trustedProxies,
		Env:            env,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      userView  `json:"user"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Signup creates an account and signs the new user in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Create(r.Context(), users.CreateParams{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogSuccess("user.signup", user.Email, "user", user.ID, h.clientIP(r), nil)
	h.startSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			h.Audit.LogFailure("user.login", req.Email, h.clientIP(r), map[string]string{"reason": "invalid_credentials"})
		}
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogSuccess("user.login", user.Email, "user", user.ID, h.clientIP(r), nil)
	h.startSession(w, r, user, http.StatusOK)
}

// Logout clears the session cookie. Bearer tokens simply expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.Clear(w)
	if session, ok := middleware.SessionFromContext(r.Context()); ok {
		h.Audit.LogSuccess("user.logout", session.Email, "user", session.UserID, h.clientIP(r), nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the signed-in user.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, users.ErrInvalidCredentials, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: userView{ID: session.UserID, Name: session.Name, Email: session.Email}})
}

// CSRFToken hands cookie-session clients the token to echo in X-CSRF-Token.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  middleware.CSRFToken(r),
		"header": middleware.CSRFHeader,
	})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *users.User, status int) {
	token, err := h.Tokens.Generate(user.ID, user.Name, user.Email)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	ttl := h.Tokens.Expiry()
	h.Cookie.Set(w, token, ttl)
	writeJSON(w, status, sessionResponse{
		User:      newUserView(user),
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	})
}

func (h *AuthHandler) clientIP(r *http.Request) string {
	return middleware.ClientIP(r, h.TrustedProxies)
}
