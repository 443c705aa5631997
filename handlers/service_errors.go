package handlers

import (
	"net/http"

	"github.com/upb/bolt-saas/backend/services"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. The body's error
// field carries the domain message; internal causes are only logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := statusForError(err)
	message := services.GetErrorMessage(err)

	var details interface{}
	if d := services.GetErrorDetails(err); len(d) > 0 {
		details = d
	}

	switch status {
	case http.StatusInternalServerError:
		if services.GetErrorType(err) == "" {
			logger.Error("unhandled error type", zap.Error(err))
			message = "An unexpected error occurred"
		} else {
			logger.Error("internal server error", zap.Error(err))
		}
		details = nil
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		logger.Warn("upstream failure", zap.Error(err))
	default:
		logger.Debug("handled service error",
			zap.String("type", string(services.GetErrorType(err))),
			zap.String("message", message))
	}

	if err := utils.WriteError(w, status, message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

func statusForError(err error) int {
	switch services.GetErrorType(err) {
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	case services.ErrorTypeValidation:
		return http.StatusBadRequest
	case services.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorTypeForbidden:
		return http.StatusForbidden
	case services.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case services.ErrorTypeConflict:
		return http.StatusConflict
	case services.ErrorTypeExternal:
		return http.StatusBadGateway
	case services.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		if err := utils.WriteBadRequest(w, "Validation failed", utils.GetValidationFields(err)); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
