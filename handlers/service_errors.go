package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/services/ai"
	"github.com/yamanotatsu/task-master-api/utils"
)

// HandleAIError maps AI invocation errors to HTTP responses
func HandleAIError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var capErr *ai.CapabilityError
	switch {
	case errors.Is(err, ai.ErrEmptyPrompt):
		if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case errors.As(err, &capErr):
		details := map[string]interface{}{
			"provider": capErr.Provider,
			"model":    capErr.ModelID,
		}
		if werr := utils.WriteUnprocessable(w, capErr.Error(), details); werr != nil {
			logger.Error("failed to write unprocessable response", zap.Error(werr))
		}

	default:
		// Everything else means every configured role was exhausted.
		logger.Warn("AI invocation failed", zap.Error(err))
		if werr := utils.WriteBadGateway(w, err.Error()); werr != nil {
			logger.Error("failed to write bad gateway response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "Validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}
