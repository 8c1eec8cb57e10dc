package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/verigrade/verigrade/pkg/common"
	"github.com/verigrade/verigrade/pkg/logger"
	"github.com/verigrade/verigrade/pkg/tracing"
)

// ErrSentryDisabled is returned by InitSentry when no DSN is configured.
var ErrSentryDisabled = stderrors.New("sentry DSN not configured")

// SentryConfig holds the Sentry client options the services set.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

// SentryConfigFromEnv reads SENTRY_* variables. Traces are sampled at 10% in
// production and fully elsewhere unless SENTRY_TRACES_SAMPLE_RATE says otherwise.
func SentryConfigFromEnv(serviceName, release string) *SentryConfig {
	env := firstNonEmpty(os.Getenv("ENVIRONMENT"), os.Getenv("SENTRY_ENVIRONMENT"), "development")
	traces := 1.0
	if env == "production" {
		traces = 0.1
	}

	return &SentryConfig{
		DSN:              os.Getenv("SENTRY_DSN"),
		Environment:      env,
		Release:          firstNonEmpty(os.Getenv("SENTRY_RELEASE"), release),
		ServerName:       serviceName,
		SampleRate:       envFloat("SENTRY_SAMPLE_RATE", 1.0),
		TracesSampleRate: envFloat("SENTRY_TRACES_SAMPLE_RATE", traces),
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
	}
}

// InitSentry configures the global Sentry client.
func InitSentry(cfg *SentryConfig) error {
	if cfg == nil || cfg.DSN == "" {
		return ErrSentryDisabled
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		SampleRate:       cfg.SampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       dropLowLevel,
		BeforeBreadcrumb: scrubBreadcrumb,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	return nil
}

func dropLowLevel(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
		return nil
	}
	return event
}

var sensitiveHeaders = []string{"Authorization", "Cookie", "X-API-Key"}

func scrubBreadcrumb(b *sentry.Breadcrumb, _ *sentry.BreadcrumbHint) *sentry.Breadcrumb {
	if b.Category == "http" {
		for _, h := range sensitiveHeaders {
			delete(b.Data, h)
		}
	}
	return b
}

// Flush waits up to timeout for queued events to be sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Report sends err to Sentry tagged with tags plus the correlation and trace
// ids found in ctx. It uses the request hub when ctx carries one.
func Report(ctx context.Context, err error, tags map[string]string) *sentry.EventID {
	if err == nil {
		return nil
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
			scope.SetTag("correlation_id", cid)
		}
		if tid := tracing.TraceID(ctx); tid != "" {
			scope.SetTag("trace_id", tid)
		}
		id = hub.CaptureException(err)
	})
	return id
}

// AddRequestBreadcrumb records a finished request on the current hub.
func AddRequestBreadcrumb(method, route string, status int, took time.Duration) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   method + " " + route,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"status_code": status,
			"duration_ms": took.Milliseconds(),
		},
	})
}

// ShouldReport reports whether err is worth a Sentry event. AppErrors below 500
// and 4xx responses other than 429 are expected outcomes, not failures.
func ShouldReport(err error, status int) bool {
	if err == nil {
		return false
	}
	if appErr, ok := common.AsAppError(err); ok {
		return appErr.Code >= http.StatusInternalServerError
	}
	return status < 400 || status >= 500 || status == http.StatusTooManyRequests
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}
