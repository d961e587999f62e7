package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	auditcache "github.com/sitepulse/engine/internal/audit/cache"
	"github.com/sitepulse/engine/internal/audit/email"
	"github.com/sitepulse/engine/internal/audit/events"
	"github.com/sitepulse/engine/internal/audit/metrics"
	"github.com/sitepulse/engine/internal/audit/orchestrator"
	"github.com/sitepulse/engine/internal/audit/prober"
	"github.com/sitepulse/engine/internal/audit/psi"
	"github.com/sitepulse/engine/internal/audit/server"
	"github.com/sitepulse/engine/internal/audit/snapshot"
	"github.com/sitepulse/engine/internal/common/config"
	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/internal/common/logger"
	"github.com/sitepulse/engine/internal/common/metricsserver"
	"github.com/sitepulse/engine/internal/common/redis"
)

func main() {
	// Parse command-line flags. An empty config path runs entirely on
	// defaults and environment variables.
	configPath := flag.String("c", "", "path to configuration file (optional)")
	flag.Parse()

	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Audit Server", zap.String("config_path", *configPath))

	configManager, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to create config manager", zap.Error(err))
	}

	cfg := configManager.GetConfig()

	// Reconfigure logger based on config settings
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	appLogger := dynamicLogger.Logger
	if cfg.InstanceID != "" {
		appLogger = appLogger.With(zap.String("instance", cfg.InstanceID))
	}

	// Create the Redis client only when the cache backend needs it.
	var redisClient *redis.Client
	if cfg.Cache.Backend == configtypes.CacheBackendRedis {
		redisClient, err = redis.NewClient(&cfg.Redis, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// Report cache
	var reportCache auditcache.ReportCache
	switch cfg.Cache.Backend {
	case configtypes.CacheBackendRedis:
		keyGenerator := redis.NewKeyGenerator(cfg.Redis.KeyPrefix)
		reportCache = auditcache.NewRedis(redisClient, keyGenerator, cfg.Cache.TTL.ToDuration(), appLogger)
		appLogger.Info("Report cache backend: redis", zap.String("addr", cfg.Redis.Addr))
	default:
		reportCache = auditcache.NewMemory(cfg.Cache.TTL.ToDuration(), appLogger)
		appLogger.Info("Report cache backend: memory",
			zap.Duration("ttl", cfg.Cache.TTL.ToDuration()))
	}

	// Snapshot store
	var snapshotStore snapshot.Store
	switch cfg.Snapshot.Backend {
	case configtypes.SnapshotBackendBlob:
		snapshotStore, err = snapshot.NewBlob(&cfg.Snapshot.Blob, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create blob snapshot store", zap.Error(err))
		}
	case configtypes.SnapshotBackendFilesystem:
		snapshotStore, err = snapshot.NewFilesystem(&cfg.Snapshot.Filesystem, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create filesystem snapshot store", zap.Error(err))
		}
	default:
		appLogger.Info("Snapshot store disabled")
	}

	// Lead capture
	var leadSender *email.Sender
	if cfg.Lead.Enabled {
		leadSender, err = email.NewSender(&cfg.Lead.Resend, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create lead sender", zap.Error(err))
		}
		appLogger.Info("Lead capture enabled")
	}

	// Audit event logging
	var eventEmitter events.Emitter = &events.NoopEmitter{}
	if cfg.EventLogging != nil && cfg.EventLogging.File.Enabled {
		fileEmitter, err := events.NewFileEmitter(cfg.EventLogging.File, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create event emitter", zap.Error(err))
		}
		eventEmitter = fileEmitter
		appLogger.Info("Event logging initialized",
			zap.String("path", cfg.EventLogging.File.Path))
	}

	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace, appLogger)

	// Start metrics server if enabled
	metricsServer, err := metricsserver.StartMetricsServer(
		cfg.Metrics.Enabled,
		cfg.Metrics.Listen,
		cfg.Metrics.Path,
		metricsCollector,
		appLogger,
	)
	if err != nil {
		appLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	auditOrchestrator := orchestrator.New(
		prober.New(&cfg.Audit, appLogger),
		reportCache,
		snapshotStore,
		psi.New(&cfg.PSI, appLogger),
		metricsCollector,
		eventEmitter,
		configManager,
		appLogger,
	)

	srv := server.NewServer(
		configManager,
		auditOrchestrator,
		leadSender,
		redisClient,
		metricsCollector,
		appLogger,
	)

	// Channel for server startup errors
	serverErrors := make(chan error, 1)

	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(srv.HandleRequest, cfg),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  appLogger,
	}
	httpLifecycle.StartWithErrorChan(serverErrors)

	// Wait briefly for the listener to bind and check for immediate failures
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		appLogger.Fatal("Server failed to start", zap.Error(err))
	default:
	}

	appLogger.Info("Audit Server started",
		zap.String("http_addr", cfg.Server.Listen),
		zap.Duration("audit_budget", cfg.Audit.Budget.ToDuration()),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("snapshot_backend", cfg.Snapshot.Backend))

	// Switch to configured log level after startup is complete
	dynamicLogger.SwitchToConfiguredLevel()

	// Wait for shutdown signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		dynamicLogger.EnsureInfoLevelForShutdown()
		appLogger.Info("Shutting down Audit Server...")
	case err := <-serverErrors:
		dynamicLogger.EnsureInfoLevelForShutdown()
		appLogger.Error("Server startup failed, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		appLogger.Info("Shutting down metrics server")
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// Shutdown public server; in-flight audits get the full grace period
	httpLifecycle.Shutdown(shutdownCtx)
	appLogger.Info("Public server shutdown complete")

	// Shutdown event emitter
	if err := eventEmitter.Close(); err != nil {
		appLogger.Error("Failed to close event emitter", zap.Error(err))
	}

	appLogger.Info("Audit Server stopped")
}

const serverName = "AuditServer/1.0"

func newFastHTTPServer(handler fasthttp.RequestHandler, cfg *configtypes.EngineConfig) *fasthttp.Server {
	timeout := cfg.Server.Timeout.ToDuration()
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		MaxRequestBodySize:           cfg.Server.MaxBodySize,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

type serverLifecycle struct {
	server  *fasthttp.Server
	name    string
	address string
	logger  *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		if err := s.server.ListenAndServe(s.address); err != nil {
			s.logger.Error("Server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("Server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", zap.String("name", s.name))
	err := s.server.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Error("Server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
	return err
}
