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
	"report-backend/internal/api"
	"report-backend/internal/config"
	"report-backend/internal/core"
	"report-backend/internal/messaging"
	"report-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

func createServer(service *api.BackendService, metrics *core.Metrics, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Handle("/metrics", metrics.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

// createQueue returns the publisher for the API and, when the worker runs in
// this process, the receiver feeding it.
func createQueue(cfg config.Config) (messaging.Publisher, messaging.Reciever) {
	if cfg.RabbitMQURL == "" {
		if !cfg.EnableWorker {
			log.Fatalf("ENABLE_WORKER must be true when RABBITMQ_URL is not set")
		}
		queue := messaging.NewInMemoryQueue(0)
		return queue, queue
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	if !cfg.EnableWorker {
		return publisher, nil
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("failed to create RabbitMQ receiver: %v", err)
	}
	return publisher, reciever
}

func startWorker(db *gorm.DB, provider storage.Provider, cfg config.Config, publisher messaging.Publisher, reciever messaging.Reciever, metrics *core.Metrics) *core.TaskProcessor {
	engine := core.NewSummaryEngine(provider, cfg.UploadBucket)
	worker := core.NewTaskProcessor(db, engine, publisher, reciever, metrics, cmd.ProcessorOptions(cfg))

	slog.Info("starting worker")
	go worker.Start()

	if err := cmd.RecoverRuns(context.Background(), worker); err != nil {
		log.Fatalf("%v", err)
	}
	return worker
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logFile := cmd.TeeLogFile(cfg.Root, "backend.log")
	defer logFile.Close()

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "storage", cfg.StorageType, "worker", cfg.EnableWorker)

	db := cmd.CreateDatabase(cfg)
	provider := cmd.CreateStorage(context.Background(), cfg)
	publisher, reciever := createQueue(cfg)
	metrics := core.NewMetrics()

	var worker *core.TaskProcessor
	var canceler api.RunCanceler
	if reciever != nil {
		worker = startWorker(db, provider, cfg, publisher, reciever, metrics)
		canceler = worker
	}

	service := api.NewBackendService(
		db,
		core.NewFileRegistry(db, provider, cfg.UploadBucket, cfg.MaxUploadBytes),
		core.NewOrchestrator(db, publisher, metrics),
		core.NewStatusService(db),
		canceler,
	)
	server := createServer(service, metrics, cfg.Port)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("server forced to shutdown: %v", err)
		}

		if worker != nil {
			slog.Info("shutting down worker")
			worker.Stop()
		}
		publisher.Close()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("could not listen on %d: %v", cfg.Port, err)
	}

	<-stopped

	slog.Info("server stopped")
}
