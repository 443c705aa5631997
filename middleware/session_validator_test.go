package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-session-secret"

func validSession() SessionToken {
	memberID := uuid.NewString()
	return SessionToken{
		Subject:       memberID,
		WorkspaceID:   uuid.NewString(),
		WorkspaceSlug: "acme",
		WorkspaceName: "Acme",
		MemberID:      memberID,
		Email:         "dev@acme.test",
		Role:          "owner",
	}
}

func TestNewSessionValidator_RequiresSecret(t *testing.T) {
	_, err := NewSessionValidator("")
	assert.ErrorIs(t, err, ErrSecretRequired)
}

func TestSessionValidator_ValidToken(t *testing.T) {
	v, err := NewSessionValidator(testSecret)
	require.NoError(t, err)

	session := validSession()
	token, err := SignSessionToken(testSecret, session, time.Now())
	require.NoError(t, err)

	claims, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, session.Subject, claims.Subject)
	assert.Equal(t, session.WorkspaceID, claims.WorkspaceID)
	assert.Equal(t, "acme", claims.WorkspaceSlug)
	assert.Equal(t, "Acme", claims.WorkspaceName)
	assert.Equal(t, session.MemberID, claims.MemberID)
	assert.Equal(t, "dev@acme.test", claims.Email)
	assert.Equal(t, "owner", claims.Role)
	assert.Equal(t, session.Subject, claims.UserID())
}

func TestSessionValidator_Rejects(t *testing.T) {
	v, err := NewSessionValidator(testSecret)
	require.NoError(t, err)

	sign := func(t *testing.T, secret string, mutate func(*SessionToken), now time.Time) string {
		t.Helper()
		s := validSession()
		if mutate != nil {
			mutate(&s)
		}
		token, err := SignSessionToken(secret, s, now)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not-a-jwt" },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			token:   func(t *testing.T) string { return sign(t, "other-secret", nil, time.Now()) },
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return sign(t, testSecret, func(s *SessionToken) { s.TTL = time.Minute }, time.Now().Add(-time.Hour))
			},
			wantErr: ErrTokenExpired,
		},
		{
			name: "missing workspace",
			token: func(t *testing.T) string {
				return sign(t, testSecret, func(s *SessionToken) { s.WorkspaceID = "" }, time.Now())
			},
			wantErr: ErrMissingClaim,
		},
		{
			name: "member id not a uuid",
			token: func(t *testing.T) string {
				return sign(t, testSecret, func(s *SessionToken) { s.MemberID = "member-1" }, time.Now())
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "unsigned algorithm",
			token: func(t *testing.T) string {
				claims := jwt.MapClaims{
					"workspace_id": uuid.NewString(),
					"member_id":    uuid.NewString(),
					"exp":          time.Now().Add(time.Hour).Unix(),
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "no expiry",
			token: func(t *testing.T) string {
				claims := jwt.MapClaims{
					"workspace_id": uuid.NewString(),
					"member_id":    uuid.NewString(),
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return token
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(context.Background(), tt.token(t))
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClaims_UserIDFallsBackToMember(t *testing.T) {
	c := &Claims{MemberID: "m-1"}
	assert.Equal(t, "m-1", c.UserID())

	c.Subject = "u-1"
	assert.Equal(t, "u-1", c.UserID())
}
