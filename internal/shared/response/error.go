package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weappkit/server/internal/shared/errors"
)

// Error writes err as a JSON error response.
// AppErrors keep their status and code; anything else becomes a 500 with a generic message.
func Error(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	status := apperrors.GetStatusCode(err)
	message := "internal error"
	if status != http.StatusInternalServerError {
		message = err.Error()
	}
	c.JSON(status, apperrors.ErrorResponse{
		Error: apperrors.ErrorDetail{
			Code:    http.StatusText(status),
			Message: message,
		},
	})
}

// BadRequest sends a 400 Bad Request response.
func BadRequest(c *gin.Context, message string) {
	Error(c, apperrors.BadRequest(message))
}
