package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func claimsEcho(t *testing.T, want *Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := GetClaimsFromContext(r.Context())
		assert.Equal(t, want, got)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireSession(t *testing.T) {
	logger := zap.NewNop()
	claims := &Claims{Subject: "member-1", WorkspaceID: "ws-1", MemberID: "member-1"}

	t.Run("bearer token attaches claims", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("ValidateToken", mock.Anything, "header-token").Return(claims, nil)
		m := NewSessionMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/projects/load", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		w := httptest.NewRecorder()

		m.RequireSession(claimsEcho(t, claims)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("session cookie attaches claims", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("ValidateToken", mock.Anything, "cookie-token").Return(claims, nil)
		m := NewSessionMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/projects/load", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
		w := httptest.NewRecorder()

		m.RequireSession(claimsEcho(t, claims)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("header takes precedence over cookie", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("ValidateToken", mock.Anything, "header-token").Return(claims, nil)
		m := NewSessionMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
		w := httptest.NewRecorder()

		m.RequireSession(claimsEcho(t, claims)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertNotCalled(t, "ValidateToken", mock.Anything, "cookie-token")
	})

	rejected := []struct {
		name      string
		validator TokenValidator
		prepare   func(r *http.Request)
	}{
		{
			name:      "missing token",
			validator: new(MockTokenValidator),
			prepare:   func(r *http.Request) {},
		},
		{
			name:      "non bearer scheme",
			validator: new(MockTokenValidator),
			prepare:   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		},
		{
			name: "invalid token",
			validator: func() TokenValidator {
				v := new(MockTokenValidator)
				v.On("ValidateToken", mock.Anything, "bad").Return(nil, ErrInvalidToken)
				return v
			}(),
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") },
		},
		{
			name:      "no validator configured",
			validator: nil,
			prepare:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer any") },
		},
	}

	for _, tt := range rejected {
		t.Run(tt.name+" returns 401", func(t *testing.T) {
			m := NewSessionMiddleware(tt.validator, logger)
			handler := m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/chat/save", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"Unauthorized","code":"unauthorized"}`, w.Body.String())
		})
	}
}

func TestOptionalSession(t *testing.T) {
	logger := zap.NewNop()
	claims := &Claims{Subject: "member-1", WorkspaceID: "ws-1", MemberID: "member-1"}

	t.Run("valid token attaches claims", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("ValidateToken", mock.Anything, "good").Return(claims, nil)
		m := NewSessionMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/auto-llm", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()

		m.OptionalSession(claimsEcho(t, claims)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid token continues anonymously", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("ValidateToken", mock.Anything, "bad").Return(nil, errors.New("boom"))
		m := NewSessionMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/auto-llm", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()

		m.OptionalSession(claimsEcho(t, nil)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no token continues anonymously", func(t *testing.T) {
		validator := new(MockTokenValidator)
		m := NewSessionMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/auto-llm", nil)
		w := httptest.NewRecorder()

		m.OptionalSession(claimsEcho(t, nil)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})
}

func TestRequestID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestID)

	var seen string
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestGetUserIDFromContext(t *testing.T) {
	assert.Empty(t, GetUserIDFromContext(context.Background()))

	ctx := WithClaims(context.Background(), &Claims{Subject: "u-1"})
	assert.Equal(t, "u-1", GetUserIDFromContext(ctx))
}

func TestRequireRole(t *testing.T) {
	logger := zap.NewNop()
	m := NewSessionMiddleware(nil, logger)

	t.Run("matching role passes", func(t *testing.T) {
		handler := m.RequireRole("owner", "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/auto-llm/reset", nil)
		req = req.WithContext(WithClaims(req.Context(), &Claims{Subject: "member-1", Role: "admin"}))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other role is forbidden", func(t *testing.T) {
		handler := m.RequireRole("owner", "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/auto-llm/reset", nil)
		req = req.WithContext(WithClaims(req.Context(), &Claims{Subject: "member-1", Role: "member"}))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing claims is unauthorized", func(t *testing.T) {
		handler := m.RequireRole("owner")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auto-llm/force", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
