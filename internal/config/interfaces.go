package config

import "context"

// SecretProvider resolves secret pointers (SSM parameter paths, or env var
// names locally) to plaintext values.
type SecretProvider interface {
	// GetParametersBatch returns key -> value for every key it could resolve.
	// Keys it cannot find are omitted from the map.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
