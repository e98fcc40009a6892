package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hirelink/booking-core/internal/service"
	"go.uber.org/zap"
)

// envelope wraps every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// respondError maps service errors to HTTP statuses. Anything that is not a
// client error is logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, service.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrConflict):
			status = http.StatusConflict
		}
		abortWith(c, status, svcErr.Message)
		return
	}

	logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	)
	abortWith(c, http.StatusInternalServerError, "An unexpected error occurred")
}
