package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/config"
	"github.com/z-wentao/docscribe/pkg/events"
	"github.com/z-wentao/docscribe/pkg/language"
	"github.com/z-wentao/docscribe/pkg/logger"
	"github.com/z-wentao/docscribe/pkg/media"
	"github.com/z-wentao/docscribe/pkg/scheduler"
	"github.com/z-wentao/docscribe/pkg/service"
	"github.com/z-wentao/docscribe/pkg/storage"
	"github.com/z-wentao/docscribe/pkg/transcriber"
	"github.com/z-wentao/docscribe/pkg/transcription"
)

const uploadDir = "uploads"

func main() {
	// 1. config and logging
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.New("info", os.Stderr).Fatal().Err(err).Str("path", configPath).Msg("load config")
	}
	log := logger.New(cfg.Log.Level, os.Stdout)

	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create upload directory")
	}

	ctx := context.Background()

	// 2. collaborators
	backend, err := newBackend(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.Storage.Type).Msg("open document store")
	}
	store := storage.NewDocumentStore(backend, cfg.Storage.Repository)

	languages, err := cfg.LanguageTable()
	if err != nil {
		log.Fatal().Err(err).Msg("language table")
	}

	recognizer, err := newRecognizer(cfg.Transcriber, languages, log)
	if err != nil {
		log.Fatal().Err(err).Msg("recognizer")
	}

	fetcher, err := newFetcher(ctx, cfg.Media)
	if err != nil {
		log.Fatal().Err(err).Msg("media fetcher")
	}

	extractor := media.NewFFmpegExtractor(cfg.Media.TempDir)
	extractor.Binary = cfg.Media.FFmpeg

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("event publisher")
	}

	// 3. pipeline, scheduler and service
	runner := transcription.NewRunner(transcription.Dependencies{
		Store:      store,
		Recognizer: recognizer,
		Extractor:  extractor,
		Fetcher:    fetcher,
		Languages:  languages,
		Publisher:  publisher,
		Logger:     log,
	})
	sched := scheduler.New(runner, scheduler.Options{
		Category:   transcription.Category,
		PoolSize:   cfg.Transcriber.WorkerPoolSize,
		QueueSize:  cfg.Transcriber.QueueSize,
		Retention:  cfg.Transcriber.Retention,
		JobTimeout: cfg.Transcriber.JobTimeout,
	}, log)
	svc := service.New(store, cfg.Storage.Repository, sched, languages, log)

	app := &App{
		store:         store,
		service:       svc,
		uploadDir:     uploadDir,
		maxUploadSize: cfg.Server.MaxUploadSize,
		log:           log,
	}

	// 4. HTTP
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("provider", cfg.Transcriber.Provider).
			Str("storage", cfg.Storage.Type).
			Int("workers", cfg.Transcriber.WorkerPoolSize).
			Msg("docscribe server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// 5. graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Shutdown(cfg.Transcriber.ShutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown")
	}
	if c, ok := publisher.(interface{ Close() error }); ok {
		c.Close()
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("close document store")
	}
	log.Info().Msg("server stopped")
}

func newBackend(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "redis":
		return storage.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
	case "hybrid":
		cache, err := storage.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			return nil, err
		}
		durable, err := storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			cache.Close()
			return nil, err
		}
		return storage.NewHybridStore(cache, durable, log), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func newRecognizer(cfg config.TranscriberConfig, languages *language.Table, log zerolog.Logger) (transcriber.Recognizer, error) {
	if cfg.Provider == "openai" {
		return transcriber.NewWhisperClient(transcriber.WhisperOptions{
			APIKey:             cfg.OpenAI.APIKey,
			BaseURL:            cfg.OpenAI.BaseURL,
			Model:              cfg.OpenAI.Model,
			MaxSegmentDuration: cfg.MaxSegmentDuration,
			Languages:          languages,
		}), nil
	}
	return transcriber.NewVocapiaClient(transcriber.VocapiaOptions{
		URL:                cfg.Vocapia.URL,
		Username:           cfg.Vocapia.Username,
		Password:           cfg.Vocapia.Password,
		Timeout:            cfg.Vocapia.Timeout,
		InsecureSkipVerify: cfg.Vocapia.InsecureSkipVerify,
		MaxSegmentDuration: cfg.MaxSegmentDuration,
		Logger:             log,
	})
}

func newFetcher(ctx context.Context, cfg config.MediaConfig) (media.Fetcher, error) {
	router := media.Router{Local: media.LocalFetcher{}}
	if cfg.S3.Enabled() {
		client, err := media.NewS3Client(ctx, media.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		router.Remote = media.NewS3Fetcher(client, cfg.TempDir)
	}
	return router, nil
}

func newPublisher(cfg config.EventsConfig, log zerolog.Logger) (events.Publisher, error) {
	if cfg.Type == "rabbitmq" {
		return events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName, log)
	}
	return events.NewLogPublisher(log), nil
}
