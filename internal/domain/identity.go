package domain

import (
	"context"
	"strings"
)

type userKey struct{}

// WithUser returns a context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user id, or ErrUnauthorized.
func UserFromContext(ctx context.Context) (string, error) {
	id, _ := ctx.Value(userKey{}).(string)
	if strings.TrimSpace(id) == "" {
		return "", ErrUnauthorized
	}
	return id, nil
}
