package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report-backend/cmd"
	"report-backend/internal/config"
	"report-backend/internal/core"
	"report-backend/internal/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL must be set for a standalone worker")
	}

	logFile := cmd.TeeLogFile(cfg.Root, "worker.log")
	defer logFile.Close()

	slog.Info("starting worker process", "concurrency", cfg.WorkerConcurrency, "file_concurrency", cfg.FileConcurrency)

	db := cmd.CreateDatabase(cfg)
	provider := cmd.CreateStorage(context.Background(), cfg)

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("failed to create RabbitMQ receiver: %v", err)
	}

	metrics := core.NewMetrics()
	worker := core.NewTaskProcessor(db, core.NewSummaryEngine(provider, cfg.UploadBucket), publisher, reciever, metrics, cmd.ProcessorOptions(cfg))

	done := make(chan struct{})
	go func() {
		worker.Start()
		close(done)
	}()

	if err := cmd.RecoverRuns(context.Background(), worker); err != nil {
		log.Fatalf("%v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	slog.Info("worker started, waiting for tasks", "metrics_port", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received, stopping worker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("error shutting down metrics server", "error", err)
	}

	// In-flight runs are handed back to the queue and resume elsewhere.
	worker.Stop()
	<-done

	slog.Info("worker process stopped")
}
