package auth

import (
	"context"

	"github.com/agentsql/bridge/pkg/models"
)

type userContextKey struct{}
type emailContextKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*models.User)
	return user, ok
}

// WithSessionEmail attaches a transport-level email (e.g. from an SSE
// session handle) that resolveEmail consults when no explicit tool-call
// override is present. This is the fix for the documented transport/email
// concurrency bug: the email now travels on the per-call context instead of
// a shared mutable field on the transport.
func WithSessionEmail(ctx context.Context, email string) context.Context {
	if email == "" {
		return ctx
	}
	return context.WithValue(ctx, emailContextKey{}, email)
}

// SessionEmailFromContext retrieves the transport-attached email, if any.
func SessionEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailContextKey{}).(string)
	return email
}
