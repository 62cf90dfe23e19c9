package auth

import (
	"context"
	"time"
)

// Principal is the user a request was authenticated as.
type Principal struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

type principalKey struct{}

func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserID returns the authenticated user's id, or "" on unauthenticated
// routes.
func UserID(ctx context.Context) string {
	p, _ := FromContext(ctx)
	return p.UserID
}
