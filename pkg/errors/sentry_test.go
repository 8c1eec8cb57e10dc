package errors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/verigrade/verigrade/pkg/common"
)

func TestShouldReport(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       bool
	}{
		{"nil error", nil, http.StatusInternalServerError, false},
		{"plain internal error", errors.New("db exploded"), http.StatusInternalServerError, true},
		{"not found app error", common.NewNotFoundError("fraud alert not found", nil), http.StatusNotFound, false},
		{"conflict app error", common.NewConflictError("alert already resolved", nil), http.StatusInternalServerError, false},
		{"internal app error", common.NewInternalError("failed to analyze transaction for fraud", errors.New("x")), http.StatusInternalServerError, true},
		{"client status", errors.New("bad"), http.StatusBadRequest, false},
		{"rate limited", errors.New("slow down"), http.StatusTooManyRequests, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReport(tt.err, tt.statusCode))
		})
	}
}

func TestSentryConfigFromEnv(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SENTRY_SAMPLE_RATE", "0.5")
	t.Setenv("SENTRY_TRACES_SAMPLE_RATE", "")
	t.Setenv("SENTRY_RELEASE", "")

	cfg := SentryConfigFromEnv("fraud-service", "v1.4.0")
	assert.Empty(t, cfg.DSN)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "v1.4.0", cfg.Release)
	assert.Equal(t, 0.5, cfg.SampleRate)
	assert.Equal(t, 0.1, cfg.TracesSampleRate)
	assert.Equal(t, "fraud-service", cfg.ServerName)
}

func TestInitSentryWithoutDSN(t *testing.T) {
	assert.ErrorIs(t, InitSentry(&SentryConfig{}), ErrSentryDisabled)
	assert.ErrorIs(t, InitSentry(nil), ErrSentryDisabled)
}

func TestReportNilError(t *testing.T) {
	assert.Nil(t, Report(context.Background(), nil, nil))
}

func TestScrubBreadcrumb(t *testing.T) {
	b := scrubBreadcrumb(&sentry.Breadcrumb{
		Category: "http",
		Data:     map[string]interface{}{"Authorization": "Bearer x", "status_code": 200},
	}, nil)
	assert.NotContains(t, b.Data, "Authorization")
	assert.Contains(t, b.Data, "status_code")
}

func TestDropLowLevel(t *testing.T) {
	assert.Nil(t, dropLowLevel(&sentry.Event{Level: sentry.LevelInfo}, nil))
	assert.NotNil(t, dropLowLevel(&sentry.Event{Level: sentry.LevelError}, nil))
}
