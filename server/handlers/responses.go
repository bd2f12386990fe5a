package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	apperrors "recserver/server/errors"
	"recserver/server/middleware"
)

// SendJSONResponse writes a JSON payload with the given status.
func SendJSONResponse(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// SendJSONError writes the uniform error payload.
func SendJSONError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetRequestIDFromGin(c),
	})
}

// SendAppError maps an error to its HTTP response, logging the internal
// cause. Unrecognized errors become a 500.
func SendAppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("unhandled error", err)
	}
	if appErr.Err != nil {
		log.Printf("[HTTP] %s %s: %v [%s]",
			c.Request.Method, c.Request.URL.Path, appErr.Err, middleware.GetRequestIDFromGin(c))
	}
	SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
}
