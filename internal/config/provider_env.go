package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves secret pointers as env var names. It stands in for
// SSM during local development.
type EnvVarProvider struct {
	lookup func(string) (string, bool)
}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookup: os.LookupEnv}
}

func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := p.lookup(key); ok {
			out[key] = val
		}
	}
	return out, nil
}
