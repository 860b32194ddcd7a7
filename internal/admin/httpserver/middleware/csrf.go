package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
)

// Defaults applied to zero CSRFConfig fields.
const (
	DefaultCSRFCookieName = "admin_csrf"
	DefaultCSRFHeaderName = "X-CSRF-Token"
	defaultCSRFMaxAge     = 24 * time.Hour
	csrfTokenBytes        = 32
)

// CSRFConfig controls the double-submit cookie.
type CSRFConfig struct {
	CookieName string
	CookiePath string
	HeaderName string
	MaxAge     time.Duration
	Secure     bool
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if c.CookieName == "" {
		c.CookieName = DefaultCSRFCookieName
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultCSRFHeaderName
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaultCSRFMaxAge
	}
	return c
}

type csrfKey struct{}

// CSRFToken is the token bound to a request and the header that must echo it.
type CSRFToken struct {
	Header string
	Value  string
}

// CSRF issues a token cookie on first contact and requires state-changing
// requests to repeat the cookie value in the configured header.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := csrfCookie(w, r, cfg)
			if err != nil {
				requestctx.Logger(r.Context()).Error("csrf token issue failed", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !safeMethod(r.Method) && !tokensMatch(r.Header.Get(cfg.HeaderName), token) {
				requestctx.Logger(r.Context()).Info("csrf token mismatch", zap.String("method", r.Method))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), csrfKey{}, CSRFToken{Header: cfg.HeaderName, Value: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFTokenFromContext returns the token for embedding in the page.
func CSRFTokenFromContext(ctx context.Context) CSRFToken {
	token, _ := ctx.Value(csrfKey{}).(CSRFToken)
	return token
}

func csrfCookie(w http.ResponseWriter, r *http.Request, cfg CSRFConfig) (string, error) {
	if c, err := r.Cookie(cfg.CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     cfg.CookiePath,
		MaxAge:   int(cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func tokensMatch(submitted, want string) bool {
	if submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(want)) == 1
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
