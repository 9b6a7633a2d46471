package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
)

type AuthService interface {
	Authenticator
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Session, error)
	Login(ctx context.Context, in identity.LoginInput) (*identity.Session, error)
	Logout(ctx context.Context, claims *identity.Claims) error
}

type AuthHandler struct {
	auth    AuthService
	cookie  config.CookieConfig
	timeout time.Duration
}

func NewAuthHandler(auth AuthService, cookie config.CookieConfig, timeout time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie, timeout: timeout}
}

// POST /authentication/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req identity.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.auth.Register(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusCreated, session)
}

// POST /authentication/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req identity.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.auth.Login(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	logger.FromContext(ctx, zap.L()).Info("user logged in", zap.String("user_id", session.User.ID))
	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusOK, session)
}

// POST /authentication/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if err := h.auth.Logout(ctx, claims); err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	h.setSessionCookie(w, "", time.Unix(0, 0))
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	c := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: sameSite(h.cookie.SameSite),
	}
	if token == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
