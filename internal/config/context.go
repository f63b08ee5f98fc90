package config

import "context"

type envKey struct{}

// WithEnvironment pins env for the rest of a request, so every component
// handling it agrees on which secret and which database apply.
func WithEnvironment(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// EnvironmentFrom returns the environment pinned by WithEnvironment.
func EnvironmentFrom(ctx context.Context) (Environment, bool) {
	env, ok := ctx.Value(envKey{}).(Environment)
	return env, ok
}
