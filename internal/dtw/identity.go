package dtw

import "context"

// Identity is the caller identity threaded through every store and RPC
// operation. The runner installs an admin identity per tick; the policy
// loops override it per item with the workload's delegated identity.
type Identity struct {
	TrustID   string
	ProjectID string
	IsAdmin   bool
}

// AdminIdentity returns the system identity used by the periodic loops.
// Admin queries bypass project scoping.
func AdminIdentity() Identity {
	return Identity{IsAdmin: true}
}

type identityKey struct{}

// WithIdentity returns a child context carrying ident.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// IdentityFrom extracts the identity from ctx. The second return value is
// false when no identity was installed.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(Identity)
	return ident, ok
}
