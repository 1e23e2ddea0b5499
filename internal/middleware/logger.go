package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Logger returns a middleware that logs HTTP requests. Bodies are not
// logged; review comments are patient-authored free text.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		logger := log.With().
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent())

		if p, ok := GetPrincipal(c); ok {
			logger = logger.Str("caller_id", p.ID.String()).Str("role", string(p.Role))
		}

		// Log based on status code
		l := logger.Logger()
		switch {
		case statusCode >= 500:
			l.Error().Msg("Server error")
		case statusCode >= 400:
			l.Warn().Msg("Client error")
		default:
			l.Info().Msg("Request processed")
		}
	}
}
