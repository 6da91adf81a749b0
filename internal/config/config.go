package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP submission
	// ----------------------------
	SMTPHost string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`

	// ----------------------------
	// Secrets
	// ----------------------------
	EncryptionSecret string `envconfig:"ENCRYPTION_SECRET" required:"true"`

	// ----------------------------
	// Poller
	// ----------------------------
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"60s"`
	TaskTimeout  time.Duration `envconfig:"TASK_TIMEOUT" default:"5m"`
	WorkerCount  int           `envconfig:"WORKER_COUNT" default:"5"`
	RateLimit    int           `envconfig:"RATE_LIMIT" default:"10"`

	// ----------------------------
	// Payload downloads
	// ----------------------------
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"30s"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// ----------------------------
	// Blob storage
	// ----------------------------
	BlobBucket    string `envconfig:"BLOB_BUCKET" required:"true"`
	BlobAccessKey string `envconfig:"BLOB_ACCESS_KEY" required:"true"`
	BlobSecretKey string `envconfig:"BLOB_SECRET_KEY" required:"true"`
	BlobEndpoint  string `envconfig:"BLOB_ENDPOINT" default:""`
	BlobRegion    string `envconfig:"BLOB_REGION" default:"us-east-1"`
	BlobPublicURL string `envconfig:"BLOB_PUBLIC_URL" default:""`
	BlobPathStyle bool   `envconfig:"BLOB_PATH_STYLE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
