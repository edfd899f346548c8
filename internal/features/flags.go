// Package features resolves feature flags from static configuration with
// environment variable overrides.
package features

import (
	"os"
	"strings"
	"unicode"
)

// Known feature keys.
const (
	Billing   = "billing"
	Analytics = "analytics"
	AuditLog  = "auditLog"
	TwoFactor = "twoFactor"
	OAuth     = "oauth"
)

// Env prefixes recognized for overrides, highest precedence first.
const (
	PrimaryEnvPrefix = "TENANTKIT_FEATURE_"
	LegacyEnvPrefix  = "FEATURE_"
)

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Resolver answers IsEnabled for feature keys.
type Resolver struct {
	defaults map[string]bool
	lookup   LookupFunc
}

// NewResolver creates a Resolver over the given static defaults. A nil
// lookup reads the process environment.
func NewResolver(defaults map[string]bool, lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	d := make(map[string]bool, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Resolver{defaults: d, lookup: lookup}
}

// IsEnabled reports whether key is on. An env override with a recognized
// boolean value wins over the static default; unrecognized values are
// ignored. Unknown keys without an override are off.
func (r *Resolver) IsEnabled(key string) bool {
	envKey := EnvName(key)
	for _, prefix := range []string{PrimaryEnvPrefix, LegacyEnvPrefix} {
		if raw, ok := r.lookup(prefix + envKey); ok {
			if v, ok := ParseBool(raw); ok {
				return v
			}
		}
	}
	return r.defaults[key]
}

// Snapshot returns the resolved value of every statically configured key.
func (r *Resolver) Snapshot() map[string]bool {
	out := make(map[string]bool, len(r.defaults))
	for k := range r.defaults {
		out[k] = r.IsEnabled(k)
	}
	return out
}

// ParseBool parses a boolean-like flag value. The second result is false
// when raw is not one of the recognized spellings.
func ParseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on", "enabled":
		return true, true
	case "0", "false", "no", "off", "disabled":
		return false, true
	}
	return false, false
}

// EnvName converts a camelCase feature key to UPPER_SNAKE_CASE
// ("auditLog" -> "AUDIT_LOG").
func EnvName(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && runes[i-1] != '_' && !unicode.IsUpper(runes[i-1]) {
			b.WriteByte('_')
		}
		if r == '-' || r == '.' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
