package handlers

import (
	"errors"
	"net/http"

	"adangle-backend/internal/apperr"
	"adangle-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInputValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrNoCandidatesFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrConceptGenerationFailed), errors.Is(err, apperr.ErrProviderFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, message string) {
	status := StatusFor(err)
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.JSON(status, models.ErrorResponse{
		Error:   message,
		Message: err.Error(),
	})
}

const retryAfterSeconds = "60"

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid " + name,
			Message: err.Error(),
		})
		return uuid.Nil, false
	}
	return id, true
}
