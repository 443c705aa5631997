package completion

import (
	"context"
	"errors"

	"github.com/upb/bolt-saas/backend/services"
	"github.com/upb/bolt-saas/backend/services/providers"
	"github.com/upb/bolt-saas/backend/services/routing"
	"github.com/upb/bolt-saas/backend/services/usage"
	"go.uber.org/zap"
)

// ErrForceUnsupported is returned when the active policy has no current provider to move
var ErrForceUnsupported = services.NewDomainError(services.ErrorTypeValidation, "The active routing policy does not support forcing a provider", nil)

// ErrResetUnsupported is returned when the active policy keeps no health state
var ErrResetUnsupported = services.NewDomainError(services.ErrorTypeValidation, "The active routing policy keeps no provider health to reset", nil)

// UsageRecorder queues usage logs for completed requests
type UsageRecorder interface {
	RecordAIRequest(req usage.AIRequest) error
}

// Forcer is implemented by policies that can pin a provider
type Forcer interface {
	ForceProvider(key string) error
}

// Caller identifies who asked for a completion. Both fields may be empty
// for anonymous callers.
type Caller struct {
	UserID    string
	ProjectID string
}

// Service runs completions through the configured routing policy
type Service struct {
	policy routing.Policy
	usage  UsageRecorder
	logger *zap.Logger
}

// NewService creates a completion Service. recorder may be nil.
func NewService(policy routing.Policy, recorder UsageRecorder, logger *zap.Logger) *Service {
	return &Service{
		policy: policy,
		usage:  recorder,
		logger: logger,
	}
}

// PolicyName returns the active policy name
func (s *Service) PolicyName() string {
	return s.policy.Name()
}

// Complete runs req through the policy. A usage log is queued for callers
// with both a user and a project; recording never fails the completion.
func (s *Service) Complete(ctx context.Context, caller Caller, req *providers.Request) (*providers.Response, error) {
	if req == nil || req.Messages == nil {
		return nil, services.ErrInvalidMessages
	}

	resp, err := s.policy.MakeRequest(ctx, req)
	if err != nil {
		s.logger.Error("completion failed",
			zap.String("policy", s.policy.Name()),
			zap.String("user_id", caller.UserID),
			zap.Error(err))
		return nil, mapPolicyError(err)
	}

	if s.usage != nil && caller.UserID != "" && caller.ProjectID != "" {
		if err := s.usage.RecordAIRequest(usage.AIRequest{
			UserID:     caller.UserID,
			ProjectID:  caller.ProjectID,
			Model:      resp.Model,
			Provider:   resp.Provider,
			TokensUsed: resp.TokensUsed,
			Cost:       resp.Cost,
		}); err != nil {
			s.logger.Warn("failed to record ai request usage",
				zap.String("project_id", caller.ProjectID),
				zap.Error(err))
		}
	}

	return resp, nil
}

// Status returns the provider snapshot
func (s *Service) Status() map[string]providers.ProviderStatus {
	return s.policy.Status()
}

// Force pins key as the current provider
func (s *Service) Force(key string) error {
	if key == "" {
		return services.ErrProviderKeyRequired
	}
	f, ok := s.policy.(Forcer)
	if !ok {
		return ErrForceUnsupported
	}
	if err := f.ForceProvider(key); err != nil {
		switch {
		case errors.Is(err, routing.ErrUnknownProvider):
			return services.ErrInvalidProvider
		case errors.Is(err, routing.ErrProviderNotConfigured):
			return services.ErrProviderNotConfigured
		default:
			return services.WrapInternal("Failed to force provider", err)
		}
	}
	return nil
}

// Reset clears provider health on policies that keep it
func (s *Service) Reset(reason string) error {
	r, ok := s.policy.(routing.Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	r.ResetAll(reason)
	return nil
}

func mapPolicyError(err error) error {
	switch {
	case routing.IsNoProviderAvailable(err):
		return services.NewDomainError(services.ErrorTypeUnavailable, err.Error(), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return services.WrapExternal("Failed to get AI response", err)
	}
}
