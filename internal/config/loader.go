package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by LoadConfig to aid start-up debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: DATABASE_URL_SSM_PARAM holds the
// SSM path whose value becomes DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

type loaderDeps struct {
	lookupEnv  func(key string) (string, bool)
	setEnv     func(key, value string) error
	environ    func() []string
	loadDotenv func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv:  os.LookupEnv,
		setEnv:     os.Setenv,
		environ:    os.Environ,
		loadDotenv: func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the process configuration.
//
// Steps, in order:
//  1. Set the process timezone to UTC.
//  2. Load a .env file if present; existing env vars win.
//  3. Unless APP_ENV is "local", resolve *_SSM_PARAM pointers through
//     provider and inject the values into the environment.
//  4. Populate Config from envconfig tags.
//  5. Validate tags and cross-field rules.
//
// provider may be nil for local development.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// A missing .env file is normal outside local development.
	_ = deps.loadDotenv()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if err := validateCrossField(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateCrossField checks rules that struct tags cannot express.
func validateCrossField(cfg *Config) error {
	var problems []string
	if cfg.Email.Dispatch == "queue" && cfg.AWS.EmailQueueURL == "" {
		problems = append(problems, "SQS_EMAIL_QUEUE is required when EMAIL_DISPATCH=queue")
	}
	if cfg.Email.Provider == "sendgrid" && cfg.Email.SendGridAPIKey.IsEmpty() {
		problems = append(problems, "SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid")
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		problems = append(problems, "DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ConfigError{
		Type:    ErrValidation,
		Message: strings.Join(problems, "; "),
	}
}

// ResolveSecrets runs only the SSM resolution step. Entry points that read a
// handful of env vars directly (the email worker) call it before os.Getenv.
// It is a no-op when APP_ENV is "local".
func ResolveSecrets(provider SecretProvider) error {
	appEnv, _ := os.LookupEnv("APP_ENV")
	if appEnv == localEnv {
		return nil
	}
	return resolveSSMParams(provider, defaultDeps())
}

// NewSecretProvider returns the provider appropriate for appEnv: environment
// lookups for local development, SSM Parameter Store otherwise.
func NewSecretProvider(appEnv, region string) SecretProvider {
	if appEnv == localEnv {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region)
}

// resolveSSMParams scans the environment for *_SSM_PARAM variables, fetches
// their values in one batch and injects them under the stripped name.
// Variables already set directly are left alone (Env > SSM).
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	type binding struct {
		target string
		path   string
	}

	var bindings []binding
	pathToTarget := make(map[string]string)

	for _, entry := range deps.environ() {
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		key := entry[:eq]
		if !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		path := entry[eq+1:]
		if path == "" {
			continue
		}
		bindings = append(bindings, binding{target: target, path: path})
		pathToTarget[path] = target
	}

	if len(bindings) == 0 {
		return nil
	}

	if provider == nil {
		targets := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targets = append(targets, b.target)
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	paths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		paths = append(paths, b.path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	for path, value := range resolved {
		target, ok := pathToTarget[path]
		if !ok {
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}

	var missing []string
	for _, b := range bindings {
		if _, ok := resolved[b.path]; !ok {
			missing = append(missing, b.target)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
