package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetup-sync/internal/service"
)

const genericErrorMessage = "Something went wrong, please try again later"

// errorStatuses asocia errores de servicio con su status. El mensaje del
// error se expone al cliente tal cual.
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrEventNotFound, http.StatusNotFound},
	{service.ErrUserExists, http.StatusConflict},
	{service.ErrInvalidEmail, http.StatusBadRequest},
	{service.ErrInvalidUsername, http.StatusBadRequest},
	{service.ErrWeakPassword, http.StatusBadRequest},
	{service.ErrCodeNotRequested, http.StatusBadRequest},
	{service.ErrCodeExpired, http.StatusBadRequest},
	{service.ErrCodeInvalid, http.StatusBadRequest},
	{service.ErrAlreadyConfirmed, http.StatusBadRequest},
	{service.ErrSelfFollow, http.StatusBadRequest},
	{service.ErrInvalidEvent, http.StatusBadRequest},
	{service.ErrOwnerCannotLeave, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrNotConfirmed, http.StatusForbidden},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrRateLimited, http.StatusTooManyRequests},
	{service.ErrEmailSendFailure, http.StatusServiceUnavailable},
}

// respondError traduce err a una respuesta JSON {"error": ...}. Los errores
// no reconocidos se registran y responden con 500 y un mensaje generico.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
		return
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	if logger != nil {
		logger.Error("request failed",
			zap.Error(err),
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
}

func respondInvalidRequest(c *gin.Context, logger *zap.Logger, err error) {
	if logger != nil {
		logger.Warn("invalid request", zap.Error(err), zap.String("route", c.FullPath()))
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
