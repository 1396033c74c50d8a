package service

import (
	"context"

	"geodrop/internal/models"
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

type PhotoReader interface {
	List(ctx context.Context, limit int, order models.PhotoOrder) ([]models.Photo, error)
	GetPhoto(ctx context.Context, id string) (models.Photo, error)
	IncrementViews(ctx context.Context, id string) (int64, error)
}

// PhotoService is the read side of the marker store. Expired photos are
// returned until the reaper removes them.
type PhotoService struct {
	photos PhotoReader
}

func NewPhotoService(photos PhotoReader) *PhotoService {
	return &PhotoService{photos: photos}
}

func (s *PhotoService) List(ctx context.Context, limit int, order models.PhotoOrder) ([]models.Photo, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if order != models.OrderOldest {
		order = models.OrderRecent
	}
	return s.photos.List(ctx, limit, order)
}

func (s *PhotoService) Get(ctx context.Context, id string) (models.Photo, error) {
	return s.photos.GetPhoto(ctx, id)
}

func (s *PhotoService) IncrementViews(ctx context.Context, id string) (int64, error) {
	return s.photos.IncrementViews(ctx, id)
}
