package config

import "context"

type ctxKey struct{}

var configCtxKey = ctxKey{}

// ContextWithConfig returns a child context carrying the loaded configuration.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configCtxKey, cfg)
}

// FromContext returns the configuration stored in ctx, or nil.
func FromContext(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	cfg, _ := ctx.Value(configCtxKey).(*Config)
	return cfg
}
