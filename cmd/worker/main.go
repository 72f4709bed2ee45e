package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/toolsascode/gfm/internal/backends/gremlin"
	"github.com/toolsascode/gfm/internal/config"
	"github.com/toolsascode/gfm/internal/executor"
	"github.com/toolsascode/gfm/internal/lock"
	"github.com/toolsascode/gfm/internal/logger"
	"github.com/toolsascode/gfm/internal/queuefactory"
	"github.com/toolsascode/gfm/internal/registry"
	"github.com/toolsascode/gfm/internal/state"
	"github.com/toolsascode/gfm/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Check if queue is enabled
	if cfg.Queue.Type == "" || cfg.Queue.Type == "none" {
		logger.Fatalf("Queue is not enabled. Set GFM_QUEUE_TYPE=kafka or pulsar to use the worker")
	}

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

	// Create executor (using global registry)
	exec := executor.NewExecutor(registry.GlobalRegistry, tracker, locker)
	if err := exec.SetGraphs(cfg.Graphs); err != nil {
		logger.Fatalf("Failed to set graph connections: %v", err)
	}
	exec.RegisterBackend("gremlin", gremlin.NewBackend())

	// Load migration scripts from the migrations directory
	loader := executor.NewLoader(cfg.Generator.MigrationsDir)
	if err := loader.LoadAll(registry.GlobalRegistry); err != nil {
		logger.Fatalf("Failed to load migrations: %v", err)
	}
	loader.StartWatching()
	defer loader.StopWatching()

	// Create queue
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

	// Create worker
	w := worker.NewWorker(exec, q)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start worker in goroutine
	go func() {
		if err := w.Start(ctx); err != nil {
			logger.Errorf("Worker error: %v", err)
			cancel()
		}
	}()

	logger.Info("Migration worker started. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	logger.Info("Shutting down worker...")

	if err := w.Stop(); err != nil {
		logger.Errorf("Error stopping worker: %v", err)
	}

	logger.Info("Worker stopped")
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
