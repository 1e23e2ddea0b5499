package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/doctorconnect-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondWithError maps err onto an HTTP status and sends an error response.
// Internal errors are reported generically; the cause is attached to the
// gin context for the error middleware to log.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}

	message := appErr.Message
	if appErr.Code == errors.ErrInternal {
		message = "internal server error"
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), &Response{
		Status:  "error",
		Message: message,
		Code:    appErr.Code.String(),
	})
}

// RespondWithStatus sends an error envelope with an explicit status, for
// failures raised before any service runs (auth, binding).
func RespondWithStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

func BadRequest(c *gin.Context, message string) {
	RespondWithStatus(c, http.StatusBadRequest, message)
}
