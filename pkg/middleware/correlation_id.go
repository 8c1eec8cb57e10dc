package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verigrade/verigrade/pkg/logger"
)

// CorrelationIDHeader carries the request id end to end
const CorrelationIDHeader = "X-Request-ID"

// legacyCorrelationHeader is still sent by the expense service
const legacyCorrelationHeader = "X-Correlation-ID"

const correlationIDKey = "correlation_id"

// CorrelationID reuses an incoming UUID request id or mints one, and exposes
// it to handlers, the request context (for logging) and the response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := incomingCorrelationID(c)

		c.Set(correlationIDKey, id)
		c.Request = c.Request.WithContext(logger.ContextWithCorrelationID(c.Request.Context(), id))
		c.Header(CorrelationIDHeader, id)

		c.Next()
	}
}

func incomingCorrelationID(c *gin.Context) string {
	for _, header := range []string{CorrelationIDHeader, legacyCorrelationHeader} {
		if parsed, err := uuid.Parse(c.GetHeader(header)); err == nil {
			return parsed.String()
		}
	}
	return uuid.NewString()
}

// GetCorrelationID returns the request id set by CorrelationID
func GetCorrelationID(c *gin.Context) string {
	if id := c.GetString(correlationIDKey); id != "" {
		return id
	}
	return logger.CorrelationIDFromContext(c.Request.Context())
}
