package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageMinio = "minio"
)

type Config struct {
	Root        string `env:"ROOT" envDefault:"./report-data"`
	DatabaseURL string `env:"DATABASE_URL"`
	Port        int    `env:"PORT" envDefault:"3001"`

	StorageType  string `env:"STORAGE_TYPE" envDefault:"local"`
	UploadBucket string `env:"UPLOAD_BUCKET" envDefault:"uploads"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	// An empty RabbitMQURL selects the in-memory queue, which requires the
	// worker to run inside the API process.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	WorkerConcurrency  int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	FileConcurrency    int           `env:"FILE_CONCURRENCY" envDefault:"1"`
	AnalysisRunTimeout time.Duration `env:"ANALYSIS_RUN_TIMEOUT" envDefault:"10m"`
	MaxUploadBytes     int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	EnableWorker       bool          `env:"ENABLE_WORKER" envDefault:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.Root, "db", "reports.db")
	}

	if cfg.StorageType == StorageS3 && cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.StorageType {
	case StorageLocal, StorageS3:
	case StorageMinio:
		if cfg.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT must be set when STORAGE_TYPE is %s", StorageMinio)
		}
	default:
		return fmt.Errorf("invalid STORAGE_TYPE '%s', must be one of [%s %s %s]", cfg.StorageType, StorageLocal, StorageS3, StorageMinio)
	}

	if cfg.UploadBucket == "" {
		return fmt.Errorf("UPLOAD_BUCKET must not be empty")
	}
	if cfg.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", cfg.WorkerConcurrency)
	}
	if cfg.FileConcurrency < 1 {
		return fmt.Errorf("FILE_CONCURRENCY must be at least 1, got %d", cfg.FileConcurrency)
	}
	if cfg.AnalysisRunTimeout < 0 {
		return fmt.Errorf("ANALYSIS_RUN_TIMEOUT must not be negative")
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	return nil
}
