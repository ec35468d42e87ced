package auth

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the key for storing the authenticated user in context.
	userContextKey contextKey = "auth_user"
	// clientIPContextKey is the key for storing the client IP address in context.
	clientIPContextKey contextKey = "client_ip"
	// roleContextKey is the key for storing just the caller's role, for
	// callers (like a single shared operator key) that authenticate
	// without resolving a full User record.
	roleContextKey contextKey = "auth_role"
)

// WithRole returns a new context carrying role.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey, role)
}

// RoleFromContext retrieves the role stored by WithRole, or the role of
// the User stored by WithUser if no bare role was set.
func RoleFromContext(ctx context.Context) (Role, bool) {
	if role, ok := ctx.Value(roleContextKey).(Role); ok {
		return role, true
	}
	if user, ok := UserFromContext(ctx); ok {
		return user.Role, true
	}
	return "", false
}

// WithUser returns a new context that carries the provided user value.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// It returns the user and true if a *User value is present for the package's userContextKey, or nil and false otherwise.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}

// WithClientIP returns a new context that carries the client IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey, ip)
}

// ClientIPFromContext retrieves the client IP address from the context.
// It returns the IP address and true if present, or empty string and false otherwise.
func ClientIPFromContext(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPContextKey).(string)
	return ip, ok
}
