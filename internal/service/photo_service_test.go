package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodrop/internal/models"
)

type stubReader struct {
	limit int
	order models.PhotoOrder
}

func (s *stubReader) List(_ context.Context, limit int, order models.PhotoOrder) ([]models.Photo, error) {
	s.limit, s.order = limit, order
	return nil, nil
}

func (s *stubReader) GetPhoto(_ context.Context, id string) (models.Photo, error) {
	return models.Photo{ID: id}, nil
}

func (s *stubReader) IncrementViews(context.Context, string) (int64, error) {
	return 4, nil
}

func TestListAppliesLimitsAndOrder(t *testing.T) {
	tests := []struct {
		limit     int
		order     models.PhotoOrder
		wantLimit int
		wantOrder models.PhotoOrder
	}{
		{0, "", DefaultListLimit, models.OrderRecent},
		{50, models.OrderOldest, 50, models.OrderOldest},
		{5000, "sideways", MaxListLimit, models.OrderRecent},
	}
	for _, tt := range tests {
		reader := &stubReader{}
		_, err := NewPhotoService(reader).List(context.Background(), tt.limit, tt.order)
		require.NoError(t, err)
		assert.Equal(t, tt.wantLimit, reader.limit)
		assert.Equal(t, tt.wantOrder, reader.order)
	}
}

func TestIncrementViews(t *testing.T) {
	views, err := NewPhotoService(&stubReader{}).IncrementViews(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), views)
}
