package common

import (
	"context"
)

// Principal identifies the caller for audit fields. Authentication itself is
// handled upstream; the server middleware attaches whatever identity the
// request carries.
type Principal struct {
	Username string
}

type principalKey struct{}

// AnonymousPrincipal is used when a request carries no identity.
var AnonymousPrincipal = Principal{Username: "anonymous"}

// WithPrincipal returns a context carrying the caller identity.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the caller identity from the context, falling back
// to AnonymousPrincipal.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok && p.Username != "" {
		return p
	}
	return AnonymousPrincipal
}
