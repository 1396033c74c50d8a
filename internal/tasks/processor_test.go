package tasks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodrop/internal/models"
	"geodrop/internal/reaper"
	"geodrop/internal/repository"
)

type stubSweeper struct {
	calls int
	err   error
}

func (s *stubSweeper) Sweep(context.Context) (reaper.Result, error) {
	s.calls++
	return reaper.Result{Deleted: 2}, s.err
}

type stubPhotos struct {
	ids map[string]bool
	err error
}

func (s *stubPhotos) GetPhoto(_ context.Context, id string) (models.Photo, error) {
	if s.err != nil {
		return models.Photo{}, s.err
	}
	if !s.ids[id] {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	return models.Photo{ID: id}, nil
}

func livePhotos(ids ...string) *stubPhotos {
	s := &stubPhotos{ids: map[string]bool{}}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

type stubAssets struct {
	originals map[string][]byte
	getErr    error
	putErr    error
	put       map[string][]byte
	putType   string
}

func (s *stubAssets) GetOriginal(_ context.Context, key string) (io.ReadCloser, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.originals[key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubAssets) PutThumbnail(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, _ := io.ReadAll(r)
	if s.put == nil {
		s.put = map[string][]byte{}
	}
	s.put[key] = data
	s.putType = contentType
	return nil
}

func message(values map[string]interface{}) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: values}
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 600, 400))))
	return buf.Bytes()
}

func TestHandleReap(t *testing.T) {
	sweeper := &stubSweeper{}
	p := NewProcessor(sweeper, livePhotos(), &stubAssets{}, zerolog.Nop())

	require.NoError(t, p.Handle(context.Background(), message(map[string]interface{}{"type": "reap"})))
	assert.Equal(t, 1, sweeper.calls)
}

func TestHandleReapFailureKeepsMessagePending(t *testing.T) {
	p := NewProcessor(&stubSweeper{err: errors.New("db down")}, livePhotos(), &stubAssets{}, zerolog.Nop())

	err := p.Handle(context.Background(), message(map[string]interface{}{"type": "reap"}))
	assert.ErrorContains(t, err, "db down")
}

func TestHandleThumbnail(t *testing.T) {
	assets := &stubAssets{originals: map[string][]byte{"2024/06/01/p1.png": samplePNG(t)}}
	p := NewProcessor(&stubSweeper{}, livePhotos("p1"), assets, zerolog.Nop())

	err := p.Handle(context.Background(), message(map[string]interface{}{
		"type":         "thumbnail",
		"photoId":      "p1",
		"imageKey":     "2024/06/01/p1.png",
		"thumbnailKey": "2024/06/01/p1_thumb.jpeg",
	}))
	require.NoError(t, err)

	out, ok := assets.put["2024/06/01/p1_thumb.jpeg"]
	require.True(t, ok)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, "image/jpeg", assets.putType)
}

func TestHandleThumbnailSkipsMissingOriginal(t *testing.T) {
	assets := &stubAssets{originals: map[string][]byte{}}
	p := NewProcessor(&stubSweeper{}, livePhotos("gone"), assets, zerolog.Nop())

	err := p.Handle(context.Background(), message(map[string]interface{}{
		"type":         "thumbnail",
		"photoId":      "gone",
		"imageKey":     "gone.png",
		"thumbnailKey": "gone_thumb.jpeg",
	}))
	require.NoError(t, err)
	assert.Empty(t, assets.put)
}

func TestHandleThumbnailReturnsTransientErrors(t *testing.T) {
	assets := &stubAssets{getErr: errors.New("connection refused")}
	p := NewProcessor(&stubSweeper{}, livePhotos("a"), assets, zerolog.Nop())

	err := p.Handle(context.Background(), message(map[string]interface{}{
		"type":         "thumbnail",
		"photoId":      "a",
		"imageKey":     "a.png",
		"thumbnailKey": "a_thumb.jpeg",
	}))
	assert.ErrorContains(t, err, "read original")
}

func TestHandleUnknownTypeIsDropped(t *testing.T) {
	p := NewProcessor(&stubSweeper{}, livePhotos(), &stubAssets{}, zerolog.Nop())
	assert.NoError(t, p.Handle(context.Background(), message(map[string]interface{}{"type": "nsfw"})))
}

func TestHandleThumbnailDropsDeletedPhoto(t *testing.T) {
	// The original survived a soft asset failure, but the row is gone.
	assets := &stubAssets{originals: map[string][]byte{"p1.png": samplePNG(t)}}
	p := NewProcessor(&stubSweeper{}, livePhotos(), assets, zerolog.Nop())

	err := p.Handle(context.Background(), message(map[string]interface{}{
		"type":         "thumbnail",
		"photoId":      "p1",
		"imageKey":     "p1.png",
		"thumbnailKey": "p1_thumb.jpeg",
	}))
	require.NoError(t, err)
	assert.Empty(t, assets.put)
}

func TestHandleThumbnailRetriesWhenLookupFails(t *testing.T) {
	assets := &stubAssets{originals: map[string][]byte{"p1.png": samplePNG(t)}}
	p := NewProcessor(&stubSweeper{}, &stubPhotos{err: errors.New("connection refused")}, assets, zerolog.Nop())

	err := p.Handle(context.Background(), message(map[string]interface{}{
		"type":         "thumbnail",
		"photoId":      "p1",
		"imageKey":     "p1.png",
		"thumbnailKey": "p1_thumb.jpeg",
	}))
	assert.ErrorContains(t, err, "look up photo")
	assert.Empty(t, assets.put)
}
