// Package tenant carries the resolved tenant identity of a request through
// the context so domain services stay tenant-scoped without touching HTTP.
package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Space captures the resolved tenant routing metadata for a request.
// It is attached to the context by the tenant resolution middleware once the
// tenant has been derived from headers or the request host.
type Space struct {
	TenantID uuid.UUID
	Name     string
	Domain   string
}

type ctxKey struct{}

// WithSpace returns a derived context carrying the tenant Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, ctxKey{}, space)
}

// FromContext extracts the tenant Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	space, ok := ctx.Value(ctxKey{}).(Space)
	return space, ok
}
