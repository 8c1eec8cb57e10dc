package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/verigrade/verigrade/pkg/config"
	"github.com/verigrade/verigrade/pkg/logger"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects a call without running it.
var ErrCircuitOpen = errors.New("circuit breaker open")

const defaultFailureThreshold = 5

// Operation is a call guarded by a breaker.
type Operation func(ctx context.Context) (interface{}, error)

// FallbackFunc answers for an operation the breaker rejected. err is the
// gobreaker rejection (open state or too many half-open probes).
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// Settings tunes a breaker. FailureThreshold consecutive failures open it,
// Timeout is how long it stays open and SuccessThreshold is the number of
// half-open probes allowed before it closes again.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// SettingsFromConfig resolves breaker settings for the named dependency.
func SettingsFromConfig(name string, cfg config.CircuitBreakerConfig) Settings {
	s := cfg.SettingsFor(name)
	return Settings{
		Name:             name,
		Interval:         time.Duration(s.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(s.TimeoutSeconds) * time.Second,
		FailureThreshold: uint32(s.FailureThreshold),
		SuccessThreshold: uint32(s.SuccessThreshold),
	}
}

// CircuitBreaker guards calls to a flaky dependency. A nil *CircuitBreaker runs
// every operation directly.
type CircuitBreaker struct {
	cb       *gobreaker.CircuitBreaker
	metrics  *breakerMetrics
	fallback FallbackFunc
}

// NewCircuitBreaker creates a breaker. fallback may be nil, in which case
// rejected calls fail with ErrCircuitOpen.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	metrics := newBreakerMetrics(breakerName(settings.Name))

	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        metrics.name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerCancellation(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.transition(from, to)
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &CircuitBreaker{cb: cb, metrics: metrics, fallback: fallback}
}

// Execute runs op through the breaker.
func (c *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	if op == nil {
		return nil, errors.New("operation cannot be nil")
	}
	if c == nil {
		return op(ctx)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})

	switch {
	case err == nil:
		c.metrics.success.Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.rejected.Inc()
		if c.fallback != nil {
			return c.fallback(ctx, err)
		}
		return nil, ErrCircuitOpen
	case isCallerCancellation(err):
		c.metrics.canceled.Inc()
		return nil, err
	default:
		c.metrics.failure.Inc()
		return nil, err
	}
}

// isCallerCancellation reports whether err comes from the caller's context
// rather than the dependency. Such errors never count towards tripping.
func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Allow reports whether the breaker currently lets calls through.
func (c *CircuitBreaker) Allow() bool {
	return c == nil || c.cb.State() != gobreaker.StateOpen
}

// State returns the breaker state as reported by gobreaker ("closed", "half-open", "open").
func (c *CircuitBreaker) State() string {
	if c == nil {
		return gobreaker.StateClosed.String()
	}
	return c.cb.State().String()
}

// Name returns the breaker name used in logs and metrics.
func (c *CircuitBreaker) Name() string {
	if c == nil {
		return ""
	}
	return c.metrics.name
}
