package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DripSend/internal/api"
	"DripSend/internal/blob"
	"DripSend/internal/config"
	"DripSend/internal/email"
	"DripSend/internal/metrics"
	"DripSend/internal/poller"
	"DripSend/internal/secret"
	"DripSend/internal/store"
	"DripSend/internal/submit"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	taskStore, err := store.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer taskStore.Close()

	if err := taskStore.Migrate(ctx); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// ------------------------------------------------
	// Blob Storage
	// ------------------------------------------------
	uploader, err := blob.New(blob.Config{
		Bucket:    cfg.BlobBucket,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Endpoint:  cfg.BlobEndpoint,
		Region:    cfg.BlobRegion,
		PublicURL: cfg.BlobPublicURL,
		PathStyle: cfg.BlobPathStyle,
	})
	if err != nil {
		logger.Fatal("blob storage setup failed", zap.Error(err))
	}

	// ------------------------------------------------
	// Secret Codec
	// ------------------------------------------------
	codec := secret.NewCodec(cfg.EncryptionSecret, logger)

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Email Sender
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	sender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, limiter, logger)

	// ------------------------------------------------
	// Task Poller
	// ------------------------------------------------
	taskPoller := &poller.Poller{
		Store:       taskStore,
		Codec:       codec,
		Sender:      sender,
		Fetcher:     poller.NewHTTPFetcher(cfg.DownloadTimeout),
		Log:         logger,
		Interval:    cfg.PollInterval,
		TaskTimeout: cfg.TaskTimeout,
		Workers:     cfg.WorkerCount,
	}

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		taskPoller.Run(ctx)
	}()

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	submitService := submit.NewService(taskStore, uploader, logger)

	apiHandler := &api.Handler{
		Submitter: submitService,
		Settings:  taskStore,
		Codec:     codec,
		Log:       logger,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: api.NewRouter(apiHandler),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// Wait for an in-flight poll tick to finish
	<-pollerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
