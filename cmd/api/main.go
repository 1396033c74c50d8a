package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"geodrop/internal/cache"
	"geodrop/internal/config"
	"geodrop/internal/database"
	"geodrop/internal/handlers"
	"geodrop/internal/jobs"
	"geodrop/internal/lifecycle"
	"geodrop/internal/log"
	"geodrop/internal/models"
	"geodrop/internal/queue"
	"geodrop/internal/reaper"
	"geodrop/internal/realtime"
	"geodrop/internal/repository"
	"geodrop/internal/server"
	"geodrop/internal/service"
	"geodrop/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "geodrop-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	photoRepo := repository.NewPhotoRepository(dbPool)
	commentRepo := repository.NewCommentRepository(dbPool)
	feed := realtime.NewFeed(redisClient, cfg.Realtime.ChannelPrefix, logger)
	producer := queue.NewProducer(redisClient, cfg.Queue.Stream)

	engine := lifecycle.NewEngine(photoRepo, cfg.Lifecycle, logger,
		lifecycle.WithPublisher(feed),
		lifecycle.WithAssetRemover(objectStore),
		lifecycle.WithPresenter(func(p models.Photo) models.PhotoView { return p.View(objectStore.URLFor) }),
	)
	sweeper := reaper.New(photoRepo, objectStore, engine, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Lifecycle: engine,
		Uploads:   service.NewUploadService(engine, objectStore, producer, cfg.Storage.MaxUploadBytes, logger),
		Photos:    service.NewPhotoService(photoRepo),
		Comments:  service.NewCommentService(commentRepo, feed, logger),
		Reaper:    sweeper,
		Stream:    realtime.NewBridge(feed, cfg.AllowCORSOrigins, logger),
		URLFor:    objectStore.URLFor,
		Checks: map[string]func(context.Context) error{
			"database": dbPool.Ping,
			"cache":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"storage":  objectStore.Ping,
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(producer, cfg.Reaper, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler did not stop in time")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
