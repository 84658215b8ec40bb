package handlers

import (
	"errors"
	"net/http"

	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/middleware"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/adminboard/backend-api/internal/telegram"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const msgInternal = "Internal server error."

// statusFor maps domain errors onto HTTP statuses. duplicate is the status
// used for unique constraint violations, which differs between endpoints.
func statusFor(err error, duplicate int) (int, string) {
	var field *telegram.FieldError
	var invalid *services.ValidationError

	switch {
	case errors.As(err, &field):
		return http.StatusBadRequest, "Missing required field: " + field.Field + "."
	case errors.Is(err, telegram.ErrMissingField):
		return http.StatusBadRequest, "Missing required authentication data."
	case errors.Is(err, telegram.ErrExpired):
		return http.StatusBadRequest, "Authentication data is expired."
	case errors.Is(err, telegram.ErrSignatureInvalid):
		return http.StatusUnauthorized, "Invalid Telegram authentication data."
	case errors.Is(err, telegram.ErrSessionNotFound):
		return http.StatusNotFound, "Login session not found or expired."
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "This user not found."
	case errors.Is(err, services.ErrCredentialMismatch):
		return http.StatusBadRequest, "Incorrect password."
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "Access denied. You are not allowed to perform this action."
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Message
	case errors.Is(err, database.ErrDuplicate):
		return duplicate, "A record with the same unique value already exists."
	case errors.Is(err, database.ErrReferenced):
		return http.StatusConflict, "The record is still referenced by other records."
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Record not found."
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// respondError writes the error body and reports unexpected failures.
func respondError(c *gin.Context, logger *logging.StandardLogger, err error, action string, duplicate int) {
	status, message := statusFor(err, duplicate)
	if status == http.StatusInternalServerError {
		middleware.RecordError(c, err, action)
		logger.WithError(err).Error("Request failed",
			zap.String("action", action),
			zap.String("path", c.FullPath()),
		)
	}
	c.JSON(status, gin.H{"message": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
