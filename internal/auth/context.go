package auth

import "context"

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity stores id in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the identity stored by WithIdentity.
// Returns nil and false if absent.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}
