package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"geodrop/internal/media/thumbnail"
	"geodrop/internal/models"
	"geodrop/internal/queue"
	"geodrop/internal/reaper"
	"geodrop/internal/repository"
	"geodrop/internal/storage"
)

type Sweeper interface {
	Sweep(ctx context.Context) (reaper.Result, error)
}

type Photos interface {
	GetPhoto(ctx context.Context, id string) (models.Photo, error)
}

type Assets interface {
	GetOriginal(ctx context.Context, key string) (io.ReadCloser, error)
	PutThumbnail(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

type Processor struct {
	sweeper Sweeper
	photos  Photos
	assets  Assets
	logger  zerolog.Logger
}

// TaskPayload mirrors the stream entry fields. Redis hands every value back
// as a string.
type TaskPayload struct {
	Type         string `json:"type"`
	PhotoID      string `json:"photoId"`
	ImageKey     string `json:"imageKey"`
	ThumbnailKey string `json:"thumbnailKey"`
}

func NewProcessor(sweeper Sweeper, photos Photos, assets Assets, logger zerolog.Logger) *Processor {
	return &Processor{
		sweeper: sweeper,
		photos:  photos,
		assets:  assets,
		logger:  logger.With().Str("component", "processor").Logger(),
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case queue.TaskReap:
		return p.handleReap(ctx)
	case queue.TaskThumbnail:
		return p.handleThumbnail(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Processor) handleReap(ctx context.Context) error {
	result, err := p.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("reap: %w", err)
	}
	p.logger.Debug().Int("deleted", result.Deleted).Msg("reap task done")
	return nil
}

// handleThumbnail skips photos that were deleted before the task ran, either
// because the original is gone or because the row is.
func (p *Processor) handleThumbnail(ctx context.Context, payload TaskPayload) error {
	if payload.PhotoID == "" || payload.ImageKey == "" || payload.ThumbnailKey == "" {
		p.logger.Warn().Str("photo_id", payload.PhotoID).Msg("thumbnail task without keys")
		return nil
	}

	obj, err := p.assets.GetOriginal(ctx, payload.ImageKey)
	if err != nil {
		return p.skipMissing(payload, err)
	}
	data, err := io.ReadAll(obj)
	obj.Close()
	if err != nil {
		return p.skipMissing(payload, err)
	}

	thumb, err := thumbnail.Make(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn().Err(err).Str("photo_id", payload.PhotoID).Msg("cannot thumbnail photo")
		return nil
	}

	if _, err := p.photos.GetPhoto(ctx, payload.PhotoID); err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			p.logger.Info().Str("photo_id", payload.PhotoID).Msg("photo deleted, dropping thumbnail")
			return nil
		}
		return fmt.Errorf("look up photo: %w", err)
	}

	if err := p.assets.PutThumbnail(ctx, payload.ThumbnailKey, bytes.NewReader(thumb), int64(len(thumb)), thumbnail.ContentType); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}
	p.logger.Info().Str("photo_id", payload.PhotoID).Str("key", payload.ThumbnailKey).Msg("thumbnail stored")
	return nil
}

func (p *Processor) skipMissing(payload TaskPayload, err error) error {
	if storage.IsNotFound(err) {
		p.logger.Info().Str("photo_id", payload.PhotoID).Msg("original gone, skipping thumbnail")
		return nil
	}
	return fmt.Errorf("read original: %w", err)
}
