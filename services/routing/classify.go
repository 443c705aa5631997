package routing

import (
	"strings"
)

// ErrorClass is the failure category that drives provider switching
type ErrorClass int

const (
	// ClassGeneric errors are retried on the same provider after a delay
	ClassGeneric ErrorClass = iota

	// ClassQuota covers rate limits and exhausted quotas
	ClassQuota

	// ClassAuth covers rejected or invalid credentials
	ClassAuth
)

// String returns the class label used in logs and metrics
func (c ErrorClass) String() string {
	switch c {
	case ClassQuota:
		return "quota"
	case ClassAuth:
		return "auth"
	default:
		return "generic"
	}
}

// SwitchesProvider reports whether the class forces an immediate switch
func (c ErrorClass) SwitchesProvider() bool {
	return c == ClassQuota || c == ClassAuth
}

var (
	quotaKeywords = []string{"quota", "rate limit", "429", "insufficient"}
	authKeywords  = []string{"401", "unauthorized", "invalid api key"}

	// fallbackKeywords is the wider net used by FallbackPolicy
	fallbackKeywords = []string{
		"quota",
		"rate limit",
		"insufficient",
		"exceeded",
		"authentication",
		"invalid api key",
		"unauthorized",
		"401",
		"403",
		"429",
	}
)

// Classify matches the error message case-insensitively. Quota keywords are
// checked before auth keywords.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassGeneric
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, quotaKeywords):
		return ClassQuota
	case containsAny(msg, authKeywords):
		return ClassAuth
	default:
		return ClassGeneric
	}
}

// IsQuotaOrAuth reports whether err matches the broad quota/auth keyword set
func IsQuotaOrAuth(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(strings.ToLower(err.Error()), fallbackKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// failureMessage is what gets recorded as the provider's last error
func failureMessage(class ErrorClass, err error) string {
	switch class {
	case ClassQuota:
		return "Quota exhausted"
	case ClassAuth:
		return "Authentication failed"
	default:
		return err.Error()
	}
}
