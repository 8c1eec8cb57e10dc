package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/verigrade/verigrade/pkg/resilience"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DependencyStatus represents the health status of a single dependency
type DependencyStatus struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Message   string        `json:"message,omitempty"`
	Critical  bool          `json:"critical"`
	CheckedAt time.Time     `json:"checked_at"`
}

// DeepHealthStatus represents the complete health status of the service
type DeepHealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version,omitempty"`
	Uptime       time.Duration               `json:"uptime_seconds"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Breakers     map[string]BreakerStatus    `json:"circuit_breakers,omitempty"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

// BreakerStatus represents the status of a circuit breaker
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Allows bool   `json:"allows_requests"`
}

// ProbeFunc checks a single dependency and returns a short message on success.
type ProbeFunc func(ctx context.Context) (string, error)

type probe struct {
	fn       ProbeFunc
	critical bool
}

// DeepChecker performs health checks on every registered dependency
type DeepChecker struct {
	service   string
	version   string
	startTime time.Time
	timeout   time.Duration
	cacheTTL  time.Duration

	mu          sync.RWMutex
	probes      map[string]probe
	breakers    map[string]*resilience.CircuitBreaker
	lastResult  *DeepHealthStatus
	lastChecked time.Time
}

// DeepCheckerConfig holds configuration for the deep checker
type DeepCheckerConfig struct {
	Service  string
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultDeepCheckerConfig returns sensible defaults
func DefaultDeepCheckerConfig() DeepCheckerConfig {
	return DeepCheckerConfig{
		Version:  "unknown",
		Timeout:  2 * time.Second,
		CacheTTL: 5 * time.Second,
	}
}

// NewDeepChecker creates a new deep health checker
func NewDeepChecker(config DeepCheckerConfig) *DeepChecker {
	return &DeepChecker{
		service:   config.Service,
		version:   config.Version,
		startTime: time.Now(),
		timeout:   config.Timeout,
		cacheTTL:  config.CacheTTL,
		probes:    make(map[string]probe),
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}
}

// AddProbe registers a dependency probe. Critical probes gate readiness.
func (d *DeepChecker) AddProbe(name string, critical bool, fn ProbeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.probes[name] = probe{fn: fn, critical: critical}
	d.lastResult = nil
}

// AddDatabase registers a critical PostgreSQL probe.
func (d *DeepChecker) AddDatabase(db *sql.DB) {
	d.AddProbe("postgres", true, DatabaseProbe(db))
}

// AddRedis registers a Redis probe.
func (d *DeepChecker) AddRedis(client redis.UniversalClient, critical bool) {
	d.AddProbe("redis", critical, RedisProbe(client))
}

// AddCircuitBreaker adds a circuit breaker to monitor
func (d *DeepChecker) AddCircuitBreaker(name string, breaker *resilience.CircuitBreaker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakers[name] = breaker
	d.lastResult = nil
}

// DatabaseProbe pings PostgreSQL and reports pool stats.
func DatabaseProbe(db *sql.DB) ProbeFunc {
	return func(ctx context.Context) (string, error) {
		if db == nil {
			return "", fmt.Errorf("database connection is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return "", fmt.Errorf("ping failed: %w", err)
		}
		stats := db.Stats()
		return fmt.Sprintf("open=%d, idle=%d, in_use=%d", stats.OpenConnections, stats.Idle, stats.InUse), nil
	}
}

// RedisProbe pings Redis.
func RedisProbe(client redis.UniversalClient) ProbeFunc {
	return func(ctx context.Context) (string, error) {
		if client == nil {
			return "", fmt.Errorf("redis client is nil")
		}
		result, err := client.Ping(ctx).Result()
		if err != nil {
			return "", fmt.Errorf("ping failed: %w", err)
		}
		return result, nil
	}
}

// ConnectionProbe adapts a "connected" flag such as eventbus.Bus.Connected.
func ConnectionProbe(connected func() bool) ProbeFunc {
	return func(context.Context) (string, error) {
		if !connected() {
			return "", fmt.Errorf("not connected")
		}
		return "connected", nil
	}
}

// Check performs a deep health check on all dependencies
func (d *DeepChecker) Check(ctx context.Context) *DeepHealthStatus {
	d.mu.RLock()
	if d.lastResult != nil && time.Since(d.lastChecked) < d.cacheTTL {
		result := d.lastResult
		d.mu.RUnlock()
		return result
	}
	probes := make(map[string]probe, len(d.probes))
	for name, p := range d.probes {
		probes[name] = p
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(d.breakers))
	for name, b := range d.breakers {
		breakers[name] = b
	}
	d.mu.RUnlock()

	status := &DeepHealthStatus{
		Status:       StatusHealthy,
		Service:      d.service,
		Version:      d.version,
		Uptime:       time.Since(d.startTime),
		Dependencies: make(map[string]DependencyStatus, len(probes)),
		Breakers:     make(map[string]BreakerStatus, len(breakers)),
		CheckedAt:    time.Now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, p := range probes {
		wg.Add(1)
		go func(name string, p probe) {
			defer wg.Done()
			depStatus := d.run(ctx, name, p)
			mu.Lock()
			status.Dependencies[name] = depStatus
			if depStatus.Status != StatusHealthy {
				if p.critical {
					status.Status = StatusUnhealthy
				} else if status.Status == StatusHealthy {
					status.Status = StatusDegraded
				}
			}
			mu.Unlock()
		}(name, p)
	}

	wg.Wait()

	for name, breaker := range breakers {
		allows := breaker.Allow()
		state := breaker.State()
		if !allows && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
		status.Breakers[name] = BreakerStatus{Name: name, State: state, Allows: allows}
	}

	d.mu.Lock()
	d.lastResult = status
	d.lastChecked = time.Now()
	d.mu.Unlock()

	return status
}

func (d *DeepChecker) run(ctx context.Context, name string, p probe) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{Name: name, Critical: p.critical, CheckedAt: start}

	checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg, err := p.fn(checkCtx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
		return status
	}
	status.Status = StatusHealthy
	status.Message = msg
	return status
}

// LiveHandler always reports the process as alive.
func (d *DeepChecker) LiveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"service": d.service,
		"uptime":  time.Since(d.startTime).String(),
	})
}

// ReadyHandler returns 503 when a critical dependency is unhealthy.
func (d *DeepChecker) ReadyHandler(c *gin.Context) {
	status := d.Check(c.Request.Context())

	httpStatus := http.StatusOK
	if status.Status == StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, status)
}

// IsReady returns true if all critical dependencies are healthy
func (d *DeepChecker) IsReady(ctx context.Context) bool {
	return d.Check(ctx).Status != StatusUnhealthy
}
