package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 75 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultEnvironment        = "local"
	defaultOIDCJWKSURL        = "https://www.googleapis.com/oauth2/v3/certs"
	defaultOIDCIssuer         = "https://accounts.google.com"
	defaultIdempotencyHeader  = "Idempotency-Key"
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultIdempotencyCleanup = time.Hour
	defaultIdempotencyBatch   = 200
	defaultPaymentEventsTopic = "checkout-payment-events"
	defaultPollInterval       = 2 * time.Second
	defaultPollAttempts       = 15
	defaultZoneCacheTTL       = 5 * time.Minute
	defaultAttemptTTL         = 2 * time.Hour
	defaultSweepInterval      = 10 * time.Minute
	defaultSweepBatch         = 100
	defaultSessionIdleTTL     = 3 * time.Hour
	defaultMaxBodyBytes       = 16 * 1024

	// BackendFirestore persists checkout records in Firestore.
	BackendFirestore = "firestore"
	// BackendMemory keeps records in process, seeded from fixtures.
	BackendMemory = "memory"
)

// Config is the runtime configuration of the checkout service, grouped by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	PSP         PSPConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
	Checkout    CheckoutConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

// FirebaseConfig stores Firebase project settings used for customer tokens.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the topic receiving payment attempt events.
type PubSubConfig struct {
	ProjectID          string
	PaymentEventsTopic string
}

// PSPConfig collects payment gateway credentials and endpoints.
// HostedGateways maps a gateway id to the base URL of its redirect API.
type PSPConfig struct {
	StripeAPIKey    string
	StripeAccountID string
	HostedGateways  map[string]string
	HostedAPIKeys   map[string]string
}

// SecurityConfig groups service-to-service authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification on /internal routes.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// IdempotencyConfig controls the idempotency middleware.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// CheckoutConfig tunes checkout orchestration.
type CheckoutConfig struct {
	Backend        string
	SeedFile       string
	PollInterval   time.Duration
	PollAttempts   int
	ZoneCacheTTL   time.Duration
	AttemptTTL     time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
	SessionIdleTTL time.Duration
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists missing or invalid configuration fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failure resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that win over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// Load reads configuration with precedence explicit map > process env > .env file,
// resolves secret references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "CHECKOUT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "CHECKOUT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "CHECKOUT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "CHECKOUT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			MaxBodyBytes: int64(intWithDefault(lookup, "CHECKOUT_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "CHECKOUT_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "CHECKOUT_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "CHECKOUT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "CHECKOUT_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:          stringWithDefault(lookup, "CHECKOUT_PUBSUB_PROJECT_ID", ""),
			PaymentEventsTopic: stringWithDefault(lookup, "CHECKOUT_PUBSUB_PAYMENT_EVENTS_TOPIC", defaultPaymentEventsTopic),
		},
		PSP: PSPConfig{
			StripeAPIKey:    stringWithDefault(lookup, "CHECKOUT_PSP_STRIPE_API_KEY", ""),
			StripeAccountID: stringWithDefault(lookup, "CHECKOUT_PSP_STRIPE_ACCOUNT_ID", ""),
			HostedGateways:  mapWithDefault(lookup, "CHECKOUT_PSP_HOSTED_GATEWAYS"),
			HostedAPIKeys:   mapWithDefault(lookup, "CHECKOUT_PSP_HOSTED_API_KEYS"),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "CHECKOUT_ENVIRONMENT", defaultEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  stringWithDefault(lookup, "CHECKOUT_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: stringWithDefault(lookup, "CHECKOUT_OIDC_AUDIENCE", ""),
				Issuers:  csvWithDefault(lookup, "CHECKOUT_OIDC_ISSUERS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyCleanup),
			CleanupBatchSize: intWithDefault(lookup, "CHECKOUT_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatch),
		},
		Checkout: CheckoutConfig{
			Backend:        strings.ToLower(stringWithDefault(lookup, "CHECKOUT_BACKEND", BackendFirestore)),
			SeedFile:       stringWithDefault(lookup, "CHECKOUT_SEED_FILE", ""),
			PollInterval:   durationWithDefault(lookup, "CHECKOUT_POLL_INTERVAL", defaultPollInterval),
			PollAttempts:   intWithDefault(lookup, "CHECKOUT_POLL_ATTEMPTS", defaultPollAttempts),
			ZoneCacheTTL:   durationWithDefault(lookup, "CHECKOUT_ZONE_CACHE_TTL", defaultZoneCacheTTL),
			AttemptTTL:     durationWithDefault(lookup, "CHECKOUT_ATTEMPT_TTL", defaultAttemptTTL),
			SweepInterval:  durationWithDefault(lookup, "CHECKOUT_SWEEP_INTERVAL", defaultSweepInterval),
			SweepBatchSize: intWithDefault(lookup, "CHECKOUT_SWEEP_BATCH", defaultSweepBatch),
			SessionIdleTTL: durationWithDefault(lookup, "CHECKOUT_SESSION_IDLE_TTL", defaultSessionIdleTTL),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultOIDCIssuer}
	}

	secretFields := []*string{&cfg.PSP.StripeAPIKey}
	for _, field := range secretFields {
		if *field, err = resolveSecret(ctx, *field, options.secret); err != nil {
			return Config{}, err
		}
	}
	for id, value := range cfg.PSP.HostedAPIKeys {
		resolved, err := resolveSecret(ctx, value, options.secret)
		if err != nil {
			return Config{}, err
		}
		cfg.PSP.HostedAPIKeys[id] = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Checkout.Backend {
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case BackendMemory:
		if cfg.Checkout.SeedFile == "" {
			missing = append(missing, "Checkout.SeedFile")
		}
	default:
		missing = append(missing, "Checkout.Backend")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Checkout.PollInterval <= 0 {
		missing = append(missing, "Checkout.PollInterval")
	}
	if cfg.Checkout.PollAttempts < 1 {
		missing = append(missing, "Checkout.PollAttempts")
	}
	if cfg.Checkout.AttemptTTL <= 0 {
		missing = append(missing, "Checkout.AttemptTTL")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		missing = append(missing, "Server.MaxBodyBytes")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}
