package domain

import "context"

// Identity is the authenticated caller attached to a request
type Identity struct {
	UserID int64
	Email  string
	Role   Role
	// Token is the raw access token the identity was derived from.
	Token string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
