package rpc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"botfleet/internal/model"
)

// respondError maps a sentinel-wrapped error onto an HTTP status via
// errors.Is, rather than the reference layout's strings.Contains
// heuristic (mapServiceError) — every error this system returns already
// wraps a named sentinel from the §7 taxonomy, so exact matching is both
// available and more reliable.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrBotNotFound), errors.Is(err, model.ErrSlotNotFound), errors.Is(err, model.ErrQueueEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrTerminalStatus):
		return http.StatusConflict
	case errors.Is(err, model.ErrPlatformUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrOrchestrator), errors.Is(err, model.ErrDeploymentFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
