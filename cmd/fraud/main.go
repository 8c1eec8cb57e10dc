package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verigrade/verigrade/internal/fraud"
	"github.com/verigrade/verigrade/pkg/cache"
	"github.com/verigrade/verigrade/pkg/config"
	"github.com/verigrade/verigrade/pkg/database"
	"github.com/verigrade/verigrade/pkg/errors"
	"github.com/verigrade/verigrade/pkg/eventbus"
	"github.com/verigrade/verigrade/pkg/health"
	"github.com/verigrade/verigrade/pkg/logger"
	"github.com/verigrade/verigrade/pkg/middleware"
	redisclient "github.com/verigrade/verigrade/pkg/redis"
	"github.com/verigrade/verigrade/pkg/resilience"
	"github.com/verigrade/verigrade/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "fraud-service"
	version     = "1.0.0"

	historyBreakerName = "transaction-history"
	requestTimeout     = 10 * time.Second
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment, serviceName, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting fraud service",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("pattern_cache", cfg.Fraud.PatternCacheBackend),
		zap.String("timezone", cfg.Fraud.Timezone),
	)

	// Initialize Sentry for error tracking
	switch err := errors.InitSentry(errors.SentryConfigFromEnv(serviceName, version)); {
	case err == nil:
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	case stderrors.Is(err, errors.ErrSentryDisabled):
		logger.Info("Sentry DSN not set, error tracking disabled")
	default:
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	}

	// Initialize OpenTelemetry tracer
	shutdownTracer, err := tracing.Setup(rootCtx, tracing.ConfigFrom(serviceName, cfg.Server.Environment, cfg.Tracing), logger.Get())
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	pool, err := database.NewPostgresPool(rootCtx, &cfg.Database, serviceName)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	db := database.SQLDB(pool)
	logger.Info("Connected to database")

	checker := health.NewDeepChecker(health.DeepCheckerConfig{
		Service:  serviceName,
		Version:  version,
		Timeout:  2 * time.Second,
		CacheTTL: 5 * time.Second,
	})
	checker.AddDatabase(db)

	// Pattern cache
	var patternCache fraud.PatternCache
	switch cfg.Fraud.PatternCacheBackend {
	case config.PatternCacheRedis:
		redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}()
		checker.AddRedis(redisClient.Client, false)
		patternCache = fraud.NewRedisPatternCache(cache.NewManager(redisClient), cfg.Fraud.PatternCacheTTL)
	default:
		patternCache = fraud.NewMemoryPatternCache(cfg.Fraud.PatternCacheSize, cfg.Fraud.PatternCacheTTL)
	}
	logger.Info("Pattern cache configured",
		zap.String("backend", cfg.Fraud.PatternCacheBackend),
		zap.Duration("ttl", cfg.Fraud.PatternCacheTTL),
	)

	// Event bus
	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(rootCtx, eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			logger.Warn("Failed to connect to NATS, alerts will not be published", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
			checker.AddProbe("nats", false, health.ConnectionProbe(bus.Connected))
			logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
		}
	}

	var historyBreaker *resilience.CircuitBreaker
	if cfg.Resilience.CircuitBreaker.Enabled {
		historyBreaker = resilience.NewCircuitBreaker(
			resilience.SettingsFromConfig(historyBreakerName, cfg.Resilience.CircuitBreaker), nil)
		checker.AddCircuitBreaker(historyBreakerName, historyBreaker)
		logger.Info("Circuit breaker configured for transaction history",
			zap.String("breaker", historyBreaker.Name()))
	}

	repo := fraud.NewRepository(db)
	patterns := fraud.NewPatternAggregator(repo, patternCache, historyBreaker, cfg.Fraud.HistoryLimit)
	service := fraud.NewService(repo, patterns, fraud.NewBusPublisher(bus), fraud.ServiceConfig{
		AlertThreshold: cfg.Fraud.AlertThreshold,
		Location:       cfg.Fraud.Location(),
	})
	handler := fraud.NewHandler(service)

	if bus != nil {
		if err := bus.Subscribe(rootCtx, eventbus.SubjectTransactionRecorded, "fraud-pattern-invalidation", service.HandleTransactionRecorded); err != nil {
			logger.Warn("Failed to subscribe to transaction events, patterns refresh on TTL only", zap.Error(err))
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(requestTimeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.Metrics(serviceName))

	if cfg.Tracing.Enabled {
		router.Use(middleware.Tracing(serviceName))
	}

	// Add Sentry error handler (should be near the end of middleware chain)
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", checker.LiveHandler)
	router.GET("/health/live", checker.LiveHandler)
	router.GET("/health/ready", checker.ReadyHandler)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
