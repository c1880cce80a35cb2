package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	memeapi "github.com/aliskhannn/meme-generator/internal/api/handlers/meme"
	"github.com/aliskhannn/meme-generator/internal/api/router"
	"github.com/aliskhannn/meme-generator/internal/api/server"
	"github.com/aliskhannn/meme-generator/internal/composer"
	"github.com/aliskhannn/meme-generator/internal/compositor"
	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway/llm"
	"github.com/aliskhannn/meme-generator/internal/gateway/sd"
	"github.com/aliskhannn/meme-generator/internal/infra/kafka/consumer"
	"github.com/aliskhannn/meme-generator/internal/infra/kafka/producer"
	mememsg "github.com/aliskhannn/meme-generator/internal/kafka/handlers/meme"
	memerepo "github.com/aliskhannn/meme-generator/internal/repository/meme"
	memesvc "github.com/aliskhannn/meme-generator/internal/service/meme"
	"github.com/aliskhannn/meme-generator/internal/storage"
	"github.com/aliskhannn/meme-generator/internal/storage/file"
	"github.com/aliskhannn/meme-generator/internal/storage/s3"
	"github.com/aliskhannn/meme-generator/internal/styles"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka and other infrastructure calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize artifact storage: local filesystem or MinIO.
	var store storage.Storage
	switch cfg.Storage.Type {
	case "s3":
		store, err = s3.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
	default:
		store = file.NewStorage(cfg.Storage.BaseDir)
	}

	// Caption rendering fails fast on a broken font file.
	comp, err := compositor.New(cfg.Compositor)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to initialize compositor")
	}

	// Gateways to the text and image generation backends.
	llmClient := llm.NewClient(cfg.LLM)
	sdClient := sd.NewClient(cfg.SD)

	promptComposer := composer.NewPromptComposer(llmClient, cfg.Prompt)
	captionComposer := composer.NewCaptionComposer(llmClient, cfg.Caption)

	// Initialize repository, producer, and the generation service.
	repo := memerepo.NewRepository(db)
	p := producer.New(&cfg.Kafka, strategy)
	catalog := styles.Default()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	service := memesvc.NewService(cfg, catalog, promptComposer, captionComposer, sdClient, comp, store, repo, rnd, zlog.Logger)

	// Kafka message handler for queued generation tasks.
	generateHandler := mememsg.NewGenerateHandler(service)

	// HTTP handler for meme routes.
	memeHandler := memeapi.NewHandler(service, p)

	// Kafka consumer for processing queued generation tasks.
	c := consumer.New(&cfg.Kafka, strategy, generateHandler)

	// Start Kafka consumer in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(memeHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Kafka producer and consumer clients.
	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
