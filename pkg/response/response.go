package response

import (
	"net/http"

	appErrors "github.com/andcoolsystems/eldraxis/pkg/errors"
	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a JSON success response carrying data.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// Message writes a success envelope with a human readable message and no data.
func Message(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Status:  StatusSuccess,
		Message: message,
	})
}

// Flat writes a success envelope whose fields are merged into the top level
// object, the shape used by the profile and search endpoints.
func Flat(c *gin.Context, statusCode int, fields gin.H) {
	body := gin.H{"status": StatusSuccess}
	for k, v := range fields {
		if k == "status" {
			continue
		}
		body[k] = v
	}
	c.JSON(statusCode, body)
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, Response{
		Status:  StatusError,
		Message: appErr.Message,
	})
}
