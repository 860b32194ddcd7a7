package config

import (
	"fmt"
	"strings"
	"time"
)

// Admin run modes.
const (
	AdminModeMock = "mock"
	AdminModeDev  = "dev"
	AdminModeProd = "prod"
)

const (
	defaultAdminAddr      = ":3051"
	defaultRefreshTimeout = 7 * time.Second
)

// AdminConfig configures the admin console binary. LoginPath receives
// unauthenticated browsers; empty answers 401. AllowedRoles restricts the
// console to tokens carrying one of these custom claims; empty admits any
// verified user. The CSRF cookie is marked Secure by default outside mock mode.
type AdminConfig struct {
	Addr             string
	Mode             string
	Locale           string
	DefaultLocale    string
	ProjectID        string
	CredentialsFile  string
	SeedFile         string
	AuthEnabled      bool
	LoginPath        string
	AllowedRoles     []string
	CSRFCookieName   string
	CSRFHeaderName   string
	CSRFCookieSecure bool
	RefreshTimeout   time.Duration
	ShutdownTimeout  time.Duration
}

// LoadAdmin reads the admin configuration. Firestore backed modes (dev, prod)
// require a project id, looked up through mode specific keys first.
func LoadAdmin(opts ...Option) (AdminConfig, error) {
	lookup, _, err := newLookup(opts)
	if err != nil {
		return AdminConfig{}, err
	}

	cfg := AdminConfig{
		Addr:            normalizeAddr(stringWithDefault(lookup, "ADMIN_HTTP_ADDR", defaultAdminAddr)),
		Mode:            strings.ToLower(firstOf(lookup, "HANKO_ADMIN_MODE", "HANKO_ADMIN_ENV")),
		Locale:          stringWithDefault(lookup, "HANKO_ADMIN_LOCALE", "ja"),
		DefaultLocale:   stringWithDefault(lookup, "HANKO_ADMIN_DEFAULT_LOCALE", "ja"),
		SeedFile:        firstOf(lookup, "HANKO_ADMIN_SEED_FILE"),
		LoginPath:       firstOf(lookup, "HANKO_ADMIN_LOGIN_PATH"),
		AllowedRoles:    splitList(firstOf(lookup, "HANKO_ADMIN_ALLOWED_ROLES")),
		CSRFCookieName:  stringWithDefault(lookup, "HANKO_ADMIN_CSRF_COOKIE_NAME", "admin_csrf"),
		CSRFHeaderName:  stringWithDefault(lookup, "HANKO_ADMIN_CSRF_HEADER_NAME", "X-CSRF-Token"),
		RefreshTimeout:  durationWithDefault(lookup, "HANKO_ADMIN_REFRESH_TIMEOUT", defaultRefreshTimeout),
		ShutdownTimeout: durationWithDefault(lookup, "HANKO_ADMIN_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}
	if cfg.Mode == "" {
		cfg.Mode = AdminModeMock
	}

	switch cfg.Mode {
	case AdminModeMock:
		cfg.AuthEnabled = boolWithDefault(lookup, "HANKO_ADMIN_AUTH_ENABLED", false)
		cfg.CSRFCookieSecure = boolWithDefault(lookup, "HANKO_ADMIN_CSRF_COOKIE_SECURE", false)
		return cfg, nil
	case AdminModeDev, AdminModeProd:
	default:
		return AdminConfig{}, fmt.Errorf("config: invalid HANKO_ADMIN_MODE %q: use mock, dev, or prod", cfg.Mode)
	}

	suffix := "_" + strings.ToUpper(cfg.Mode)
	projectKeys := []string{
		"HANKO_ADMIN_FIREBASE_PROJECT_ID" + suffix,
		"HANKO_ADMIN_FIREBASE_PROJECT_ID",
		"FIRESTORE_PROJECT_ID",
		"FIREBASE_PROJECT_ID",
		"GOOGLE_CLOUD_PROJECT",
	}
	cfg.ProjectID = firstOf(lookup, projectKeys...)
	if cfg.ProjectID == "" {
		return AdminConfig{}, &ValidationError{fields: []string{strings.Join(projectKeys, "|")}}
	}
	cfg.CredentialsFile = firstOf(lookup,
		"HANKO_ADMIN_FIREBASE_CREDENTIALS_FILE"+suffix,
		"HANKO_ADMIN_FIREBASE_CREDENTIALS_FILE",
		"GOOGLE_APPLICATION_CREDENTIALS",
	)
	cfg.AuthEnabled = boolWithDefault(lookup, "HANKO_ADMIN_AUTH_ENABLED", true)
	cfg.CSRFCookieSecure = boolWithDefault(lookup, "HANKO_ADMIN_CSRF_COOKIE_SECURE", true)
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	return cfg, nil
}
