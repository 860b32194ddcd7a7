package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
)

// User is the staff member behind a console request.
type User struct {
	UID   string
	Email string
	Roles []string
	Token string
}

// ActorID is what the console records on order events. Email wins over uid.
func (u *User) ActorID() string {
	switch {
	case u == nil:
		return ""
	case u.Email != "":
		return u.Email
	default:
		return u.UID
	}
}

// Authenticator turns a raw ID token into a User.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*User, error)
}

// ErrUnauthorized is the fallback cause of a rejected request.
var ErrUnauthorized = errors.New("unauthorized")

// Rejection reasons logged and used to pick the response shape.
const (
	ReasonMissingToken = "missing_token"
	ReasonTokenInvalid = "token_invalid"
	ReasonTokenExpired = "token_expired"
)

// AuthError tags an authentication failure with one of the Reason constants.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err with reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

type userKey struct{}

// tokenCookies are checked in order when no Authorization header is sent.
var tokenCookies = []string{"Authorization", "__session", "idToken"}

// Auth rejects requests without a valid token. Browsers are sent to loginPath
// when one is configured; everything else gets a bare 401. A nil
// authenticator rejects every request.
func Auth(authenticator Authenticator, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, reason, err := authenticate(authenticator, r)
			if reason != "" {
				requestctx.Logger(r.Context()).Info("admin auth failure",
					zap.String("reason", reason),
					zap.Error(err),
				)
				reject(w, r, loginPath, reason)
				return
			}
			ctx := context.WithValue(r.Context(), userKey{}, user)
			ctx = requestctx.WithOperator(ctx, user.ActorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(authenticator Authenticator, r *http.Request) (*User, string, error) {
	token := requestToken(r)
	if token == "" {
		return nil, ReasonMissingToken, nil
	}
	if authenticator == nil {
		return nil, ReasonTokenInvalid, ErrUnauthorized
	}
	user, err := authenticator.Authenticate(r, token)
	if err == nil && user != nil {
		return user, "", nil
	}

	reason := ReasonTokenInvalid
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if authErr.Reason != "" {
			reason = authErr.Reason
		}
		err = authErr.Err
	}
	if err == nil {
		err = ErrUnauthorized
	}
	return nil, reason, err
}

// UserFromContext returns the user attached by Auth.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, _ := ctx.Value(userKey{}).(*User)
	return user, user != nil
}

func requestToken(r *http.Request) string {
	if token, ok := stripBearer(r.Header.Get("Authorization")); ok {
		return token
	}
	for _, name := range tokenCookies {
		c, err := r.Cookie(name)
		if err != nil {
			continue
		}
		value := strings.TrimSpace(c.Value)
		if token, ok := stripBearer(value); ok {
			return token
		}
		if value != "" {
			return value
		}
	}
	return ""
}

func stripBearer(value string) (string, bool) {
	const prefix = "bearer "
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(value[len(prefix):])
	return token, token != ""
}

func reject(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	expired := reason == ReasonTokenExpired
	switch {
	case IsHTMXRequest(r.Context()):
		// htmx follows these headers instead of a 302.
		if expired {
			w.Header().Set("HX-Refresh", "true")
		} else if loginPath != "" {
			w.Header().Set("HX-Redirect", loginPath)
		}
	case loginPath != "":
		http.Redirect(w, r, loginTarget(loginPath, expired), http.StatusFound)
		return
	}
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

func loginTarget(loginPath string, expired bool) string {
	if !expired {
		return loginPath
	}
	u, err := url.Parse(loginPath)
	if err != nil {
		return loginPath
	}
	q := u.Query()
	q.Set("reason", "expired")
	u.RawQuery = q.Encode()
	return u.String()
}
