package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
	"github.com/jwalitptl/doctorconnect-api/pkg/httputil"
)

// ErrorHandler logs errors attached to the context and renders the last one
// when the handler did not write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			code := apperrors.CodeOf(e.Err)
			evt := log.Warn()
			if code == apperrors.ErrInternal {
				evt = log.Error()
			}
			evt.Err(e.Err).
				Str("request_id", requestID).
				Str("code", code.String()).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if !c.Writer.Written() {
			httputil.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}
