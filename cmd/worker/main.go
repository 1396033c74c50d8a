package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"geodrop/internal/cache"
	"geodrop/internal/config"
	"geodrop/internal/database"
	"geodrop/internal/lifecycle"
	"geodrop/internal/log"
	"geodrop/internal/models"
	"geodrop/internal/queue"
	"geodrop/internal/reaper"
	"geodrop/internal/realtime"
	"geodrop/internal/repository"
	"geodrop/internal/storage"
	"geodrop/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("app", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "geodrop-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	photoRepo := repository.NewPhotoRepository(dbPool)
	feed := realtime.NewFeed(client, cfg.Realtime.ChannelPrefix, logger)
	engine := lifecycle.NewEngine(photoRepo, cfg.Lifecycle, logger,
		lifecycle.WithPublisher(feed),
		lifecycle.WithPresenter(func(p models.Photo) models.PhotoView { return p.View(objectStore.URLFor) }),
	)

	processor := tasks.NewProcessor(reaper.New(photoRepo, objectStore, engine, logger), photoRepo, objectStore, logger)
	consumer := queue.NewConsumer(client, cfg.Queue, logger, processor)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("worker exited cleanly")
}
