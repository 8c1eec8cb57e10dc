package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/verigrade/verigrade/pkg/common"
	"github.com/verigrade/verigrade/pkg/errors"
)

// SentryMiddleware attaches a request-scoped Sentry hub.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second})
}

// ErrorHandler forwards reportable handler errors to Sentry after the chain
// has run. A 5xx without an attached error is reported as a message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		took := time.Since(start)
		errors.AddRequestBreadcrumb(c.Request.Method, routeOf(c), status, took)

		reported := false
		for _, ginErr := range c.Errors {
			if errors.ShouldReport(ginErr.Err, status) {
				scopedHub(c, status, took).CaptureException(ginErr.Err)
				reported = true
			}
		}
		if !reported && len(c.Errors) == 0 && status >= http.StatusInternalServerError {
			scopedHub(c, status, took).CaptureMessage(fmt.Sprintf("HTTP %d on %s %s", status, c.Request.Method, routeOf(c)))
		}
	}
}

// RecoveryWithSentry turns a panic into a Sentry event and a 500 envelope.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			hub := hubFor(c)
			hub.Scope().SetRequest(c.Request)
			hub.Scope().SetContext("panic", map[string]interface{}{
				"value":      fmt.Sprint(recovered),
				"stacktrace": string(debug.Stack()),
			})
			hub.RecoverWithContext(c.Request.Context(), recovered)
			hub.Flush(2 * time.Second)

			common.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
			c.Abort()
		}()

		c.Next()
	}
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

// scopedHub returns the request hub with the request, level and routing tags set.
func scopedHub(c *gin.Context, status int, took time.Duration) *sentry.Hub {
	hub := hubFor(c)
	scope := hub.Scope()
	scope.SetRequest(c.Request)
	scope.SetLevel(levelFor(status))
	scope.SetTags(map[string]string{
		"http.method":      c.Request.Method,
		"http.status_code": strconv.Itoa(status),
		"endpoint":         routeOf(c),
	})
	if id := GetCorrelationID(c); id != "" {
		scope.SetTag("correlation_id", id)
	}
	if id := c.Param("id"); id != "" {
		scope.SetTag("path.id", id)
	}
	scope.SetContext("http", map[string]interface{}{
		"duration_ms": took.Milliseconds(),
		"remote_addr": c.ClientIP(),
	})
	return hub
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

func levelFor(status int) sentry.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return sentry.LevelError
	case status == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
