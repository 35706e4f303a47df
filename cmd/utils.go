package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"report-backend/internal/config"
	"report-backend/internal/core"
	"report-backend/internal/database"
	"report-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// TeeLogFile mirrors log output into <root>/<name>. The returned file must be
// closed by the caller.
func TeeLogFile(root, name string) *os.File {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(root, name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	log.SetOutput(io.MultiWriter(f, os.Stderr))
	return f
}

func CreateDatabase(cfg config.Config) *gorm.DB {
	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

func newStorage(ctx context.Context, cfg config.Config) (storage.Provider, error) {
	switch cfg.StorageType {
	case config.StorageS3:
		return storage.NewS3Provider(ctx, storage.S3ProviderConfig{
			S3EndpointURL:     cfg.S3EndpointURL,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			S3Region:          cfg.S3Region,
		})
	case config.StorageMinio:
		return storage.NewMinioProvider(storage.MinioProviderConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return storage.NewLocalProvider(filepath.Join(cfg.Root, "storage"))
	}
}

// CreateStorage opens the configured blob store and makes sure the upload
// bucket exists.
func CreateStorage(ctx context.Context, cfg config.Config) storage.Provider {
	provider, err := newStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create %s storage provider: %v", cfg.StorageType, err)
	}

	if err := provider.CreateBucket(ctx, cfg.UploadBucket); err != nil {
		log.Fatalf("failed to create upload bucket %s: %v", cfg.UploadBucket, err)
	}

	slog.Info("storage ready", "type", cfg.StorageType, "bucket", cfg.UploadBucket)
	return provider
}

func ProcessorOptions(cfg config.Config) core.ProcessorOptions {
	return core.ProcessorOptions{
		Workers:         cfg.WorkerConcurrency,
		FileConcurrency: cfg.FileConcurrency,
		RunTimeout:      cfg.AnalysisRunTimeout,
	}
}

// RecoverRuns re-queues runs interrupted by a previous shutdown. The
// processor must already be consuming so a bounded queue cannot block it.
func RecoverRuns(ctx context.Context, processor *core.TaskProcessor) error {
	n, err := processor.RecoverRuns(ctx)
	if err != nil {
		return fmt.Errorf("error recovering interrupted runs: %w", err)
	}
	if n > 0 {
		slog.Info("recovered interrupted analysis runs", "count", n)
	}
	return nil
}
