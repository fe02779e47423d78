package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/config"
	"github.com/NomadCrew/nomad-crew-ocr/handlers"
	"github.com/NomadCrew/nomad-crew-ocr/internal/cache"
	"github.com/NomadCrew/nomad-crew-ocr/internal/extraction"
	"github.com/NomadCrew/nomad-crew-ocr/internal/metrics"
	"github.com/NomadCrew/nomad-crew-ocr/internal/ocr"
	"github.com/NomadCrew/nomad-crew-ocr/internal/ocr/tesseract"
	"github.com/NomadCrew/nomad-crew-ocr/internal/patterns"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/router"
	"github.com/NomadCrew/nomad-crew-ocr/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

// @title NomadCrew OCR API
// @version 1.0
// @description Document OCR and field extraction for Swiss invoices and receipts.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	configPath := flag.String("config", "", "YAML configuration file; environment variables override its values")
	printConfig := flag.Bool("print-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	// Initialize logger
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFromFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *printConfig {
		if err := config.WriteYAML(cfg, os.Stdout); err != nil {
			log.Fatalf("Failed to print config: %v", err)
		}
		return
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Redis client with TLS when configured
	redisOptions := &redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}
	if cfg.Redis.UseTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warnw("Redis unreachable at startup, cache and rate limiting degrade until it returns",
			"address", cfg.Redis.Address, "error", err)
	}
	cancelPing()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var resultCache cache.Cache = cache.NoopCache{Recorder: collector}
	if cfg.Cache.Enabled {
		resultCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix,
			cache.WithHitRecorder(collector),
			cache.WithOperationTimeout(cfg.Cache.OperationTimeout()),
		)
	}

	scheduler := ocr.NewScheduler(ocr.SchedulerConfig{
		WorkerCount:    cfg.OCR.WorkerCount,
		Languages:      cfg.OCR.LanguageList(),
		DPI:            cfg.OCR.DPI,
		CharWhitelist:  cfg.OCR.CharWhitelist,
		JobTimeout:     cfg.OCR.JobTimeout(),
		ProgressBuffer: cfg.OCR.ProgressBuffer,
	}, tesseract.New, ocr.WithObserver(collector))

	initCtx, cancelInit := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := scheduler.Initialize(initCtx); err != nil {
		cancelInit()
		log.Fatalf("Failed to start recognition pool: %v", err)
	}
	cancelInit()

	progressCtx, stopProgress := context.WithCancel(context.Background())
	defer stopProgress()
	go logProgress(progressCtx, scheduler.Progress())

	opts := []services.DocumentServiceOption{
		services.WithMetrics(collector),
		services.WithCacheTTL(cfg.Cache.TTL()),
		services.WithDefaultLocale(cfg.OCR.DefaultLocale),
	}
	healthService := services.NewHealthService(resultCache, scheduler, cfg.Server.Version)
	if cfg.Archive.Enabled {
		archive, err := services.NewR2Archive(context.Background(), cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to configure document archive: %v", err)
		}
		opts = append(opts, services.WithArchive(archive))
		healthService.SetArchive(archive)
	}

	extractor := extraction.NewEngine(patterns.DefaultLibrary())
	documentService := services.NewDocumentService(scheduler, extractor, resultCache, opts...)
	rateLimitService := services.NewRateLimitService(redisClient)

	r := router.SetupRouter(router.Dependencies{
		Config:          cfg,
		DocumentHandler: handlers.NewDocumentHandler(documentService, cfg.Server.MaxUploadBytes),
		HealthHandler:   handlers.NewHealthHandler(healthService),
		RateLimiter:     rateLimitService,
		Gatherer:        registry,
	})

	requestTimeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Infow("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"workers", scheduler.Status().WorkerCount,
			"languages", scheduler.Languages())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	log.Infow("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop intake first so queued jobs can drain.
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := scheduler.Shutdown(ctx); err != nil {
		log.Errorw("Recognition pool shutdown failed", "error", err)
	}
	log.Info("Server stopped")
}

func logProgress(ctx context.Context, events <-chan ocr.ProgressEvent) {
	log := logger.GetLogger().Named("ocr-progress")
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			log.Debugw("Job progress",
				"jobID", ev.JobID,
				"workerID", ev.WorkerID,
				"stage", ev.Stage,
				"progress", ev.Progress)
		}
	}
}
