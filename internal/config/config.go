// Package config defines the process configuration for tenantkit services.
// Configuration is loaded once at start-up and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails start-up.
package config

import (
	"time"

	"tenantkit/internal/types"
)

// SecretString is an alias for types.SecretString so secrets loaded here stay
// redacted when a Config is logged.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tenantkit-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Billing       BillingConfig
	Auth          AuthConfig
	Security      SecurityConfig
	Tenant        TenantConfig
	Feature       FeatureConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds the Postgres connection string and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	MigrateOnStart    bool          `envconfig:"DB_MIGRATE_ON_START" default:"false"`
}

// AWSConfig holds AWS region and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// EmailQueueURL is required when Email.Dispatch is "queue".
	EmailQueueURL string `envconfig:"SQS_EMAIL_QUEUE" validate:"omitempty,url"`

	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// EmailConfig selects the email provider and how messages reach it.
type EmailConfig struct {
	// Provider is the delivery backend: ses, sendgrid, or stub.
	Provider string `envconfig:"EMAIL_PROVIDER" default:"stub" validate:"oneof=ses sendgrid stub"`
	// Dispatch is "direct" (send inline) or "queue" (enqueue for email-worker).
	Dispatch       string       `envconfig:"EMAIL_DISPATCH" default:"direct" validate:"oneof=direct queue"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@tenantkit.dev" validate:"required,email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"TenantKit"`
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY"`
	SESConfigSet   string       `envconfig:"SES_CONFIGURATION_SET"`
}

// BillingConfig holds Stripe credentials. Both are optional; billing calls
// are skipped when the secret key is empty.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// AuthConfig holds session and credential policy.
type AuthConfig struct {
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionCookie   string        `envconfig:"SESSION_COOKIE_NAME" default:"tenantkit_session"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"12" validate:"min=4,max=31"`
	MaxFailedLogins int           `envconfig:"AUTH_MAX_FAILED_LOGINS" default:"5" validate:"min=1"`
	LockoutDuration time.Duration `envconfig:"AUTH_LOCKOUT_DURATION" default:"15m"`
	InvitationTTL   time.Duration `envconfig:"INVITATION_TTL" default:"168h"`
	SecureCookies   bool          `envconfig:"SECURE_COOKIES" default:"true"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// TenantConfig controls how tenant links are built and which path prefixes
// skip tenant resolution.
type TenantConfig struct {
	RootDomain     string   `envconfig:"TENANT_ROOT_DOMAIN" default:"localhost:8080" validate:"required"`
	Scheme         string   `envconfig:"TENANT_LINK_SCHEME" default:"https" validate:"oneof=http https"`
	Subdomains     bool     `envconfig:"TENANT_SUBDOMAIN_LINKS" default:"false"`
	BypassPrefixes []string `envconfig:"TENANT_BYPASS_PREFIXES"`
}

// FeatureConfig holds the static feature flag defaults. Per-flag env
// overrides (TENANTKIT_FEATURE_*, FEATURE_*) are applied by the features
// package at lookup time.
type FeatureConfig struct {
	Defaults map[string]bool `envconfig:"FEATURE_DEFAULTS" default:"auditLog:true,billing:false,analytics:false,twoFactor:false,oauth:false"`
}

// ObservabilityConfig holds metric settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"TenantKit"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an env value could not be parsed into its field.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
