package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"plantcare/internal/cache"
	"plantcare/internal/caregen"
	"plantcare/internal/config"
	"plantcare/internal/controller"
	"plantcare/internal/database"
	"plantcare/internal/queue"
	"plantcare/internal/repository"
	"plantcare/internal/routes"
	"plantcare/internal/webhook"
	"plantcare/internal/worker"
	"plantcare/pkg/logger"
)

func main() {
	loadEnvFile(".env")

	ctx := context.Background()
	cfg := config.Get()
	logger.SetLevel(cfg.LogLevel)

	// Listings and care tasks live in Postgres; nothing works without it
	db := database.InitDB(ctx)
	if db == nil {
		logger.Error(ctx, "Database not available; exiting")
		os.Exit(1)
	}
	if err := database.MigrateOrCreateSchema(ctx); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}

	// Redis is optional; a nil client makes the calendar cache always miss
	taskCache := cache.NewTaskCache(cache.Client(ctx), time.Duration(cfg.CacheTTL)*time.Second)

	store := repository.Store{}
	gen := caregen.New(store, store, taskCache)
	gen.Concurrency = cfg.CareConcurrency

	queue.Producer(ctx)
	queue.EnsureTopic(ctx)

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx, gen)
	}()

	hook := &controller.PaymentWebhook{
		Secret:    cfg.WebhookSecret,
		Tolerance: webhook.DefaultTolerance,
		Processor: gen,
	}
	if cfg.KafkaEnabled() {
		hook.Publish = queue.PublishPurchase
	}
	router := routes.Router(routes.Handlers{
		Webhook:   hook,
		CareTasks: &controller.CareTasks{Store: store, Cache: taskCache},
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.WithCORS(router, cfg.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown error", "error", err)
	}
	// Inline generation started by webhooks finishes before the DB goes away
	hook.Wait()
	stopWorker()
	<-workerDone
	if err := queue.Close(); err != nil {
		logger.Error(ctx, "Kafka producer close failed", "error", err)
	}
	_ = db.Close()
	logger.Info(ctx, "Server stopped")
}

// loadEnvFile reads a .env file and sets env vars (only if not already set).
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = strings.Trim(val, `"`)
		} else if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			val = strings.Trim(val, "'")
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
