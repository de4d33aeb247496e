package auth

import (
	"context"
	"slices"
)

const RoleAdmin = "admin"

// Principal is the caller identified by a validated bearer token.
type Principal struct {
	Subject  string
	Username string
	Roles    []string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

func (p Principal) IsAdmin() bool { return p.HasRole(RoleAdmin) }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
