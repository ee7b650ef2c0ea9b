package auth

import "context"

// Admin identifies an authenticated admin request.
type Admin struct {
	User      string
	SessionID string
}

type contextKey string

const adminContextKey contextKey = "admin"

// ContextWithAdmin adds an Admin to the context.
func ContextWithAdmin(ctx context.Context, admin *Admin) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

// AdminFromContext returns the Admin stored by the auth middleware, or nil.
func AdminFromContext(ctx context.Context) *Admin {
	admin, _ := ctx.Value(adminContextKey).(*Admin)
	return admin
}

// SessionIDFromContext returns the admin session id, or "" when absent.
func SessionIDFromContext(ctx context.Context) string {
	if admin := AdminFromContext(ctx); admin != nil {
		return admin.SessionID
	}
	return ""
}
