package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "project not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: project not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
				Err:     nil,
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same type and message",
			err:    NewDomainError(ErrorTypeNotFound, "Project not found", errors.New("sql: no rows")),
			target: ErrProjectNotFound,
			want:   true,
		},
		{
			name:   "same type, different message",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: ErrProjectNotFound,
			want:   false,
		},
		{
			name:   "type-only target",
			err:    ErrChatHistoryNotFound,
			target: &DomainError{Type: ErrorTypeNotFound},
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrProjectNotFound,
			want:   false,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "projectId").WithDetail("value", "missing")

	assert.Equal(t, "projectId", err.Details["field"])
	assert.Equal(t, "missing", err.Details["value"])
}

func TestIsErrorHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"project not found", ErrProjectNotFound, IsNotFoundError, true},
		{"wrapped chat history not found", fmt.Errorf("wrapped: %w", ErrChatHistoryNotFound), IsNotFoundError, true},
		{"validation is not not-found", ErrInvalidInput, IsNotFoundError, false},
		{"nil is not not-found", nil, IsNotFoundError, false},
		{"invalid messages", ErrInvalidMessages, IsValidationError, true},
		{"wrapped action type", fmt.Errorf("wrapped: %w", ErrActionTypeRequired), IsValidationError, true},
		{"regular error is not validation", errors.New("regular"), IsValidationError, false},
		{"unauthorized", ErrUnauthorized, IsUnauthorizedError, true},
		{"invalid token", ErrInvalidToken, IsUnauthorizedError, true},
		{"forbidden", ErrForbidden, IsForbiddenError, true},
		{"unauthorized is not forbidden", ErrUnauthorized, IsForbiddenError, false},
		{"conflict", ErrConcurrentUpdate, IsConflictError, true},
		{"database error", ErrDatabaseError, IsInternalError, true},
		{"provider error is not internal", ErrProviderError, IsInternalError, false},
		{"provider error", ErrProviderError, IsExternalError, true},
		{"no provider available", ErrNoProviderAvailable, IsUnavailableError, true},
		{"no provider is not external", ErrNoProviderAvailable, IsExternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrProjectNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidActionType, ErrorTypeValidation},
		{"unavailable", ErrNoProviderAvailable, ErrorTypeUnavailable},
		{"wrapped", fmt.Errorf("ctx: %w", ErrDatabaseError), ErrorTypeInternal},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "Invalid messages format", GetErrorMessage(ErrInvalidMessages))
	assert.Equal(t, "Project not found", GetErrorMessage(fmt.Errorf("load: %w", ErrProjectNotFound)))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "actionType").WithDetail("reason", "missing")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "actionType", details["field"])
	assert.Equal(t, "missing", details["reason"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeInternal, "wrapped message", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "wrapped message", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to save project", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapExternal(t *testing.T) {
	baseErr := errors.New("API Error (500): upstream down")
	wrapped := WrapExternal("Failed to get AI response", baseErr)

	assert.True(t, IsExternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestErrorTypeCheckersCoverage(t *testing.T) {
	typeCheckers := map[ErrorType]func(error) bool{
		ErrorTypeNotFound:     IsNotFoundError,
		ErrorTypeValidation:   IsValidationError,
		ErrorTypeUnauthorized: IsUnauthorizedError,
		ErrorTypeForbidden:    IsForbiddenError,
		ErrorTypeRateLimit:    IsRateLimitError,
		ErrorTypeConflict:     IsConflictError,
		ErrorTypeInternal:     IsInternalError,
		ErrorTypeExternal:     IsExternalError,
		ErrorTypeUnavailable:  IsUnavailableError,
	}

	for errType, checker := range typeCheckers {
		t.Run(string(errType), func(t *testing.T) {
			err := NewDomainError(errType, "test error", nil)
			assert.True(t, checker(err), "checker should return true for %s", errType)
		})
	}
}
