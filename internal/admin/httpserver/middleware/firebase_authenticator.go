package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// ErrTokenExpired is returned when the Firebase token has expired.
var ErrTokenExpired = errors.New("firebase token expired")

// ErrForbiddenRole is returned for verified users without a console role.
var ErrForbiddenRole = errors.New("user has no admin console role")

// FirebaseTokenVerifier is the slice of *auth.Client the console needs.
type FirebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseAuthenticator validates Firebase ID tokens and maps them onto a User.
type FirebaseAuthenticator struct {
	verifier FirebaseTokenVerifier
	roles    []string
}

// NewFirebaseAuthenticator constructs an Authenticator backed by the provided
// verifier. When allowedRoles is non-empty the token must carry one of them in
// its role or roles claim.
func NewFirebaseAuthenticator(verifier FirebaseTokenVerifier, allowedRoles ...string) (*FirebaseAuthenticator, error) {
	if verifier == nil {
		return nil, errors.New("firebase token verifier is required")
	}
	return &FirebaseAuthenticator{verifier: verifier, roles: claimStringSlice(allowedRoles)}, nil
}

// Authenticate verifies token with Firebase and applies the role gate.
func (f *FirebaseAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	verified, err := f.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		reason := ReasonTokenInvalid
		if firebaseauth.IsIDTokenExpired(err) || errors.Is(err, ErrTokenExpired) {
			reason = ReasonTokenExpired
		}
		return nil, NewAuthError(reason, err)
	}

	user := &User{
		UID:   verified.UID,
		Email: claimString(verified.Claims["email"]),
		Roles: claimStringSlice(verified.Claims["role"], verified.Claims["roles"]),
		Token: token,
	}
	if !f.permits(user.Roles) {
		return nil, NewAuthError(ReasonTokenInvalid, ErrForbiddenRole)
	}
	return user, nil
}

func (f *FirebaseAuthenticator) permits(roles []string) bool {
	if len(f.roles) == 0 {
		return true
	}
	return slices.ContainsFunc(roles, func(have string) bool {
		return slices.ContainsFunc(f.roles, func(want string) bool { return strings.EqualFold(want, have) })
	})
}

func claimString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// claimStringSlice flattens role claims. Firebase custom claims arrive as a
// single string, a list, or a map of role name to true.
func claimStringSlice(values ...any) []string {
	var roles []string
	add := func(role string) {
		role = strings.TrimSpace(role)
		if role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	for _, value := range values {
		switch v := value.(type) {
		case string:
			add(v)
		case []string:
			for _, role := range v {
				add(role)
			}
		case []any:
			for _, item := range v {
				add(claimString(item))
			}
		case map[string]any:
			for role, granted := range v {
				if ok, _ := granted.(bool); ok {
					add(role)
				}
			}
		}
	}
	return roles
}
