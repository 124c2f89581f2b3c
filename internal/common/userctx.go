package common

import "context"

// UserContext holds the verified identity of the request caller, placed in the
// request context by the bearer-token middleware after a successful verification.
// A nil UserContext means the request is anonymous.
type UserContext struct {
	Username       string
	InstallationID int64
	IsAdmin        bool
}

// HasInstallation reports whether the caller has completed the App installation flow.
func (uc *UserContext) HasInstallation() bool {
	return uc != nil && uc.InstallationID != 0
}

type contextKey int

const (
	userContextKey contextKey = iota
	correlationIDKey
)

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUsername returns the authenticated username from context, or empty string
// for anonymous requests.
func ResolveUsername(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.Username
	}
	return ""
}

// WithCorrelationID stores the request correlation ID in context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext retrieves the correlation ID, or empty string if absent.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
