package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"geodrop/internal/geo"
	"geodrop/internal/ids"
	"geodrop/internal/lifecycle"
	"geodrop/internal/media/sniffer"
	"geodrop/internal/models"
	"geodrop/internal/queue"
	"geodrop/internal/storage"
)

var (
	ErrEmptyFile           = errors.New("empty file")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedType     = errors.New("unsupported image type")
	ErrContentTypeMismatch = errors.New("content type mismatch")
)

type PhotoCreator interface {
	CreatePhoto(ctx context.Context, in lifecycle.NewPhoto) (models.Photo, error)
}

type OriginalStore interface {
	PutOriginal(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	RemoveAssets(ctx context.Context, refs models.AssetRefs) error
}

type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, fields map[string]any) (string, error)
}

type UploadInput struct {
	File         io.Reader
	DeclaredType string
	Latitude     float64
	Longitude    float64
	CreatedBy    string
}

type UploadService struct {
	photos   PhotoCreator
	store    OriginalStore
	queue    TaskQueue
	maxBytes int64
	now      func() time.Time
	log      zerolog.Logger
}

func NewUploadService(photos PhotoCreator, store OriginalStore, queue TaskQueue, maxBytes int64, log zerolog.Logger) *UploadService {
	return &UploadService{
		photos:   photos,
		store:    store,
		queue:    queue,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "upload").Logger(),
	}
}

// Upload stores the original, creates the photo through the lifecycle engine
// and queues thumbnail generation. The thumbnail key is assigned up front so
// the marker never needs a second write.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (models.Photo, error) {
	if err := geo.Validate(input.Latitude, input.Longitude); err != nil {
		return models.Photo{}, err
	}
	if input.File == nil {
		return models.Photo{}, ErrEmptyFile
	}

	data, err := s.readLimited(input.File)
	if err != nil {
		return models.Photo{}, err
	}

	result, err := sniffer.DetectHead(data)
	if err != nil {
		return models.Photo{}, ErrUnsupportedType
	}
	if input.DeclaredType != "" && input.DeclaredType != "application/octet-stream" && input.DeclaredType != result.MIME {
		return models.Photo{}, fmt.Errorf("%w: declared %s, actual %s", ErrContentTypeMismatch, input.DeclaredType, result.MIME)
	}

	photoID := ids.New()
	imageKey := storage.ObjectKey(photoID, string(result.Type), s.now())
	assets := models.AssetRefs{ImageKey: imageKey, ThumbnailKey: storage.ThumbnailKey(imageKey)}

	if err := s.store.PutOriginal(ctx, imageKey, bytes.NewReader(data), int64(len(data)), result.MIME); err != nil {
		return models.Photo{}, fmt.Errorf("put object: %w", err)
	}

	photo, err := s.photos.CreatePhoto(ctx, lifecycle.NewPhoto{
		ID:        photoID,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		CreatedBy: input.CreatedBy,
		Assets:    assets,
	})
	if err != nil {
		if rmErr := s.store.RemoveAssets(ctx, models.AssetRefs{ImageKey: imageKey}); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("key", imageKey).Msg("remove orphaned original failed")
		}
		return models.Photo{}, err
	}

	if _, err := s.queue.Enqueue(ctx, queue.TaskThumbnail, map[string]any{
		"photoId":      photo.ID,
		"imageKey":     assets.ImageKey,
		"thumbnailKey": assets.ThumbnailKey,
	}); err != nil {
		s.log.Warn().Err(err).Str("photo_id", photo.ID).Msg("enqueue thumbnail failed")
	}

	return photo, nil
}

func (s *UploadService) readLimited(r io.Reader) ([]byte, error) {
	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
