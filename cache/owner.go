package cache

import (
	"context"

	"github.com/google/uuid"
)

type ownerKey struct{}

// WithOwner returns a context whose BlockingCache locks belong to owner.
// Goroutines acting for the same unit of work should share an owner so that
// a lock taken by a Get is released by the matching Put or Remove.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// NewOwner returns a context carrying a freshly generated owner id.
func NewOwner(ctx context.Context) (context.Context, string) {
	owner := uuid.NewString()
	return WithOwner(ctx, owner), owner
}

// OwnerFromContext returns the owner carried by ctx, or "" for the anonymous owner.
func OwnerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok {
		return owner
	}
	return ""
}
