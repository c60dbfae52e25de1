package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/controller"
	"todo-api/internal/queue"
	"todo-api/internal/repository"
	"todo-api/internal/routes"
	"todo-api/internal/scheduler"
	"todo-api/internal/worker"
	"todo-api/pkg/logger"
)

func main() {
	config.LoadEnvFile(".env")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	cfg := config.Get()
	logger.SetLevel(cfg.LogLevel)
	if err := config.LoadErr(); err != nil {
		logger.Error(ctx, "Config load failed", "error", err)
		os.Exit(1)
	}

	backing, closer, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Database not available; exiting", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	var store repository.Store = backing
	var cached *cache.Store
	if cfg.RedisEnabled() {
		if client := cache.Client(ctx, cfg); client != nil {
			defer client.Close()
			cached = cache.NewStore(backing, client, cfg.CacheTTLDuration())
			store = cached
		}
	}

	var events queue.Publisher = queue.Nop{}
	if cfg.KafkaEnabled() {
		queue.EnsureTopic(ctx, cfg)
		producer := queue.NewKafkaPublisher(ctx, cfg)
		defer producer.Close()
		events = producer
		if cached != nil {
			// Consumes events and invalidates cache for writes made outside this process
			go worker.Run(ctx, cfg, cached)
		}
	}

	if interval := cfg.ReminderIntervalDuration(); interval > 0 {
		reminder := scheduler.NewReminder(store, events, cfg.ReminderWindowDuration())
		if err := reminder.Start(interval); err != nil {
			logger.Error(ctx, "Reminder start failed", "error", err)
			os.Exit(1)
		}
		defer reminder.Stop()
		logger.Info(ctx, "Deadline reminders enabled", "interval", interval.String(), "window", cfg.ReminderWindowDuration().String())
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(controller.NewTodoController(store, events), cfg.JWTSecret),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort, "auth", cfg.AuthEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	stop()
	logger.Info(ctx, "Server stopped")
}
