package middleware

import (
	"net/http"
	"strings"

	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie the web application stores the session token in
const SessionCookieName = "__bolt_session"

// SessionMiddleware attaches workspace sessions to requests
type SessionMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewSessionMiddleware creates a SessionMiddleware. A nil validator means no
// session can be established: RequireSession rejects every request and
// OptionalSession passes every request through anonymously.
func NewSessionMiddleware(validator TokenValidator, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireSession rejects requests without a valid session with 401
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" || m.validator == nil {
			m.logger.Debug("missing session",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Unauthorized")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("session validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Unauthorized")
			return
		}

		m.logger.Debug("session attached",
			zap.String("request_id", requestID),
			zap.String("workspace_id", claims.WorkspaceID),
			zap.String("member_id", claims.MemberID))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// OptionalSession attaches a session when a valid token is present and
// otherwise lets the request through anonymously
func (m *SessionMiddleware) OptionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" || m.validator == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Debug("ignoring invalid session",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// RequireRole allows the request only when the session role is one of roles.
// It must run after RequireSession.
func (m *SessionMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Unauthorized")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.Strings("required_roles", roles),
				zap.String("role", claims.Role))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		})
	}
}

// extractToken reads the Bearer token, falling back to the session cookie.
// The Authorization header takes precedence when both are present.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
