package config

import (
	"context"
	"time"
)

const (
	defaultAPIPort             = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 15 * time.Second
	defaultBodyLimit           = 1 << 20
	defaultIdempotencyTTL      = 30 * 24 * time.Hour
	defaultWebhookEventTTL     = 90 * 24 * time.Hour
	defaultSignatureTolerance  = 300 * time.Second
	defaultSecretsFallbackFile = ".secrets.local"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Config is the public API configuration.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Stripe    StripeConfig
	Orders    OrdersConfig
	PubSub    PubSubConfig
	Secrets   SecretsConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       int64
}

type FirestoreConfig struct {
	Backend      string
	ProjectID    string
	EmulatorHost string
}

type StripeConfig struct {
	// WebhookSecret may be a secret:// reference. Empty disables verification.
	WebhookSecret      string
	SignatureTolerance time.Duration
}

type OrdersConfig struct {
	IdempotencyTTL  time.Duration
	WebhookEventTTL time.Duration
}

type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

type SecretsConfig struct {
	DefaultProject string
	FallbackFile   string
}

// Load reads the API configuration from .env, the environment and Secret Manager.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	lookup, options, err := newLookup(opts)
	if err != nil {
		return Config{}, err
	}

	projectID := apiProjectID(lookup)
	cfg := Config{
		Server: ServerConfig{
			Addr:            normalizeAddr(firstOf(lookup, "API_SERVER_PORT", "PORT")),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			BodyLimit:       int64WithDefault(lookup, "API_SERVER_BODY_LIMIT", defaultBodyLimit),
		},
		Firestore: FirestoreConfig{
			Backend:      stringWithDefault(lookup, "API_STORE_BACKEND", BackendFirestore),
			ProjectID:    projectID,
			EmulatorHost: firstOf(lookup, "API_FIRESTORE_EMULATOR_HOST", "FIRESTORE_EMULATOR_HOST"),
		},
		Stripe: StripeConfig{
			WebhookSecret:      firstOf(lookup, "API_PSP_STRIPE_WEBHOOK_SECRET"),
			SignatureTolerance: durationWithDefault(lookup, "API_PSP_STRIPE_SIGNATURE_TOLERANCE", defaultSignatureTolerance),
		},
		Orders: OrdersConfig{
			IdempotencyTTL:  durationWithDefault(lookup, "API_ORDERS_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			WebhookEventTTL: durationWithDefault(lookup, "API_ORDERS_WEBHOOK_EVENT_TTL", defaultWebhookEventTTL),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", projectID),
			OrderEventsTopic: firstOf(lookup, "API_PUBSUB_ORDER_EVENTS_TOPIC"),
		},
		Secrets: secretsConfig(lookup, projectID),
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":" + defaultAPIPort
	}

	secret, err := resolveSecret(ctx, cfg.Stripe.WebhookSecret, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Stripe.WebhookSecret = secret

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadSecrets reads only the Secret Manager settings. The API resolves
// secret:// references while loading, so the fetcher is built from this first.
func LoadSecrets(opts ...Option) (SecretsConfig, error) {
	lookup, _, err := newLookup(opts)
	if err != nil {
		return SecretsConfig{}, err
	}
	return secretsConfig(lookup, apiProjectID(lookup)), nil
}

func apiProjectID(lookup lookupFunc) string {
	return firstOf(lookup, "API_FIRESTORE_PROJECT_ID", "FIRESTORE_PROJECT_ID", "API_FIREBASE_PROJECT_ID", "FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
}

func secretsConfig(lookup lookupFunc, projectID string) SecretsConfig {
	return SecretsConfig{
		DefaultProject: stringWithDefault(lookup, "API_SECRETS_PROJECT_ID", projectID),
		FallbackFile:   stringWithDefault(lookup, "API_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
	}
}

func (cfg Config) validate() error {
	var missing []string
	switch cfg.Firestore.Backend {
	case BackendMemory:
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	default:
		missing = append(missing, "Firestore.Backend")
	}
	if cfg.Stripe.SignatureTolerance <= 0 {
		missing = append(missing, "Stripe.SignatureTolerance")
	}
	if cfg.Orders.IdempotencyTTL <= 0 {
		missing = append(missing, "Orders.IdempotencyTTL")
	}
	if cfg.Orders.WebhookEventTTL <= 0 {
		missing = append(missing, "Orders.WebhookEventTTL")
	}
	if cfg.Server.BodyLimit <= 0 {
		missing = append(missing, "Server.BodyLimit")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}
