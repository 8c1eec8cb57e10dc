package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/verigrade/verigrade/pkg/common"
	"github.com/verigrade/verigrade/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout bounds the request context. Handlers that exceed it and have
// not written a response get a 504.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.Header("X-Timeout", "true")
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.Response{
				Success: false,
				Error: &common.ErrorInfo{
					Code:    http.StatusGatewayTimeout,
					Message: "Request timeout",
				},
			})

			logger.WithContext(ctx).Warn("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("timeout", timeout),
			)
		}
	}
}
