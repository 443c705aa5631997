package middleware

import (
	"context"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for session claims
	ClaimsKey contextKey = "claims"
)

// Claims is the validated content of a workspace session token
type Claims struct {
	Subject       string // user id rows are owned by; the member id for workspace sessions
	WorkspaceID   string
	WorkspaceSlug string
	WorkspaceName string
	MemberID      string
	Email         string
	Role          string
}

// UserID returns the id that owns projects, chats and usage logs
func (c *Claims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.MemberID
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves session claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds session claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserIDFromContext returns the caller's user id, or "" for anonymous requests
func GetUserIDFromContext(ctx context.Context) string {
	if claims := GetClaimsFromContext(ctx); claims != nil {
		return claims.UserID()
	}
	return ""
}
