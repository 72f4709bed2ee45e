package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/toolsascode/gfm/internal/api/http"
	"github.com/toolsascode/gfm/internal/backends/gremlin"
	"github.com/toolsascode/gfm/internal/config"
	"github.com/toolsascode/gfm/internal/executor"
	"github.com/toolsascode/gfm/internal/lock"
	"github.com/toolsascode/gfm/internal/logger"
	"github.com/toolsascode/gfm/internal/queuefactory"
	"github.com/toolsascode/gfm/internal/registry"
	"github.com/toolsascode/gfm/internal/state"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireAPIToken(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("Initializing gfm server...")

	// Initialize state tracker
	tracker, err := state.NewStore(cfg.State.Driver, cfg.State.DSN)
	if err != nil {
		logger.Fatalf("Failed to initialize state store: %v", err)
	}
	defer func() { _ = tracker.Close() }()

	locker, err := newLocker(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize lock: %v", err)
	}
	defer func() { _ = locker.Close() }()

	// Initialize executor (using global registry)
	exec := executor.NewExecutor(registry.GlobalRegistry, tracker, locker)
	if err := exec.SetGraphs(cfg.Graphs); err != nil {
		logger.Fatalf("Failed to set graph connections: %v", err)
	}
	exec.RegisterBackend("gremlin", gremlin.NewBackend())

	// Initialize queue if enabled
	q, err := queuefactory.NewQueue(&queuefactory.QueueConfig{
		Type:               cfg.Queue.Type,
		KafkaBrokers:       cfg.Queue.KafkaBrokers,
		KafkaTopic:         cfg.Queue.KafkaTopic,
		KafkaGroupID:       cfg.Queue.KafkaGroupID,
		PulsarURL:          cfg.Queue.PulsarURL,
		PulsarTopic:        cfg.Queue.PulsarTopic,
		PulsarSubscription: cfg.Queue.PulsarSubscription,
	})
	if err != nil {
		logger.Fatalf("Failed to create queue: %v", err)
	}
	if q != nil {
		defer func() { _ = q.Close() }()
		exec.SetQueue(q)
		logger.Info("Queue enabled - migrations will be queued for async execution")
	}

	// Load migration scripts from the migrations directory
	loader := executor.NewLoader(cfg.Generator.MigrationsDir)
	if err := loader.LoadAll(registry.GlobalRegistry); err != nil {
		logger.Fatalf("Failed to load migrations: %v", err)
	}

	// Start watching for new migration files
	loader.StartWatching()
	defer loader.StopWatching()

	// Initialize HTTP server
	router := gin.New()

	// Custom logger middleware that skips health check endpoints
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		if param.Path == "/health" {
			return ""
		}
		return fmt.Sprintf("[GIN] %s | %3d | %13v | %15s | %-7s %s\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			param.Path,
		)
	}))
	router.Use(gin.Recovery())
	router.Use(httpapi.CORSMiddleware(cfg.Server.CORSOrigins))

	handler := httpapi.NewHandler(exec, cfg.Server.APIToken)
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting HTTP server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	logger.Infof("gfm server started successfully, serving %d graph(s)", len(cfg.Graphs))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// newLocker builds the lock backend named in the configuration
func newLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.Lock.Type == "etcd" {
		return lock.NewEtcd(lock.EtcdConfig{
			Endpoints:   cfg.Lock.EtcdEndpoints,
			Username:    cfg.Lock.EtcdUsername,
			Password:    cfg.Lock.EtcdPassword,
			DialTimeout: cfg.Lock.DialTimeout,
			TTL:         cfg.Lock.TTL,
		})
	}
	return lock.NewLocal(), nil
}
