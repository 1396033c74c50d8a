package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodrop/internal/config"
	"geodrop/internal/lifecycle"
	"geodrop/internal/models"
	"geodrop/internal/reaper"
	"geodrop/internal/repository"
	"geodrop/internal/service"
	"geodrop/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUploader struct {
	input service.UploadInput
	body  []byte
	err   error
}

func (s *stubUploader) Upload(_ context.Context, in service.UploadInput) (models.Photo, error) {
	s.input = in
	s.body, _ = io.ReadAll(in.File)
	if s.err != nil {
		return models.Photo{}, s.err
	}
	return models.Photo{ID: "new", Latitude: in.Latitude, Longitude: in.Longitude, CreatedBy: in.CreatedBy,
		Assets: models.AssetRefs{ImageKey: "k.png", ThumbnailKey: "k_thumb.jpeg"}}, nil
}

type stubPhotos struct {
	store *testutil.MemStore
	err   error
}

func (s *stubPhotos) List(context.Context, int, models.PhotoOrder) ([]models.Photo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Photo{{ID: "a"}, {ID: "b"}}, nil
}

func (s *stubPhotos) Get(_ context.Context, id string) (models.Photo, error) {
	p, ok := s.store.Photo(id)
	if !ok {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	return p, nil
}

func (s *stubPhotos) IncrementViews(_ context.Context, id string) (int64, error) {
	if _, ok := s.store.Photo(id); !ok {
		return 0, repository.ErrPhotoNotFound
	}
	return 1, nil
}

type stubComments struct {
	added []string
}

func (s *stubComments) Add(_ context.Context, photoID, initials, content string) (models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return models.Comment{}, service.ErrInvalidComment
	}
	s.added = append(s.added, content)
	return models.Comment{ID: "c1", PhotoID: photoID, UserInitials: initials, Content: content}, nil
}

func (s *stubComments) List(_ context.Context, photoID string) ([]models.Comment, error) {
	if photoID == "missing" {
		return nil, repository.ErrPhotoNotFound
	}
	return []models.Comment{{ID: "c1"}}, nil
}

type stubAssets struct {
	removed []models.AssetRefs
}

func (s *stubAssets) RemoveAssets(_ context.Context, refs models.AssetRefs) error {
	s.removed = append(s.removed, refs)
	return nil
}

type stubSweeper struct {
	calls int
}

func (s *stubSweeper) Sweep(context.Context) (reaper.Result, error) {
	s.calls++
	return reaper.Result{Deleted: 3, Zones: []string{"z"}}, nil
}

type testAPI struct {
	router   *gin.Engine
	store    *testutil.MemStore
	uploads  *stubUploader
	photos   *stubPhotos
	comments *stubComments
	sweeper  *stubSweeper
	assets   *stubAssets
	checkErr error
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := testutil.NewMemStore()
	assets := &stubAssets{}
	engine := lifecycle.NewEngine(store, config.LifecycleConfig{
		BaseLifespan:    7 * 24 * time.Hour,
		ZoneThreshold:   8,
		ZoneResolution:  7,
		ConflictRetries: 1,
	}, zerolog.Nop(), lifecycle.WithAssetRemover(assets))

	api := &testAPI{
		store:    store,
		uploads:  &stubUploader{},
		photos:   &stubPhotos{store: store},
		comments: &stubComments{},
		sweeper:  &stubSweeper{},
		assets:   assets,
	}
	cfg := &config.AppConfig{
		Environment: "test",
		Security:    config.SecurityConfig{AdminToken: "admin"},
		RateLimit:   config.RateLimitConfig{PerMinute: 6000, Burst: 100},
	}
	h := NewHandlerSet(zerolog.Nop(), cfg, Deps{
		Lifecycle: engine,
		Uploads:   api.uploads,
		Photos:    api.photos,
		Comments:  api.comments,
		Reaper:    api.sweeper,
		URLFor:    func(key string, thumb bool) string { return "https://cdn/" + key },
		Checks: map[string]func(context.Context) error{
			"database": func(context.Context) error { return api.checkErr },
		},
	})
	api.router = gin.New()
	h.Register(api.router.Group("/api"))
	return api
}

func (a *testAPI) do(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	api.checkErr = errors.New("down")
	w = api.do(http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestListPhotos(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/photos?limit=10&order=oldest", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 2)

	w = api.do(http.MethodGet, "/api/v1/photos?limit=ten", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.photos.err = errors.New("connection refused")
	w = api.do(http.MethodGet, "/api/v1/photos", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "store_unavailable", decode(t, w)["error"])
}

func TestGetPhotoAddsAssetURLs(t *testing.T) {
	api := newTestAPI(t)
	api.store.Seed(models.Photo{ID: "p1", Assets: models.AssetRefs{ImageKey: "a.png", ThumbnailKey: "a_thumb.jpeg"}})

	w := api.do(http.MethodGet, "/api/v1/photos/p1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "https://cdn/a.png", body["imageUrl"])
	assert.Equal(t, "https://cdn/a_thumb.jpeg", body["thumbnailUrl"])
	assert.Nil(t, body["expiresAt"])

	w = api.do(http.MethodGet, "/api/v1/photos/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePhotoMultipart(t *testing.T) {
	api := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("lat", "52.52"))
	require.NoError(t, mw.WriteField("lon", "13.40"))
	require.NoError(t, mw.WriteField("createdBy", "kim"))
	fw, err := mw.CreateFormFile("file", "p.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("pixels"))
	require.NoError(t, mw.Close())

	w := api.do(http.MethodPost, "/api/v1/photos", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 52.52, api.uploads.input.Latitude)
	assert.Equal(t, "kim", api.uploads.input.CreatedBy)
	assert.Equal(t, []byte("pixels"), api.uploads.body)
}

func TestCreatePhotoRequiresCoordinatesAndFile(t *testing.T) {
	api := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("lat", "north"))
	require.NoError(t, mw.Close())
	w := api.do(http.MethodPost, "/api/v1/photos", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	buf.Reset()
	mw = multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("lat", "1"))
	require.NoError(t, mw.WriteField("lon", "1"))
	require.NoError(t, mw.Close())
	w = api.do(http.MethodPost, "/api/v1/photos", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file_required", decode(t, w)["error"])
}

func TestLikeAndDislikeErrors(t *testing.T) {
	api := newTestAPI(t)
	api.store.Seed(models.Photo{ID: "p1", ZoneID: "z"})
	actor := map[string]string{"X-Actor-Id": "sam"}

	w := api.do(http.MethodPost, "/api/v1/photos/p1/like", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/photos/p1/dislike", nil, actor)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "dislike_not_allowed", decode(t, w)["error"])

	w = api.do(http.MethodPost, "/api/v1/photos/p1/like", nil, actor)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["likes"])

	w = api.do(http.MethodPost, "/api/v1/photos/p1/like", nil, actor)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_interacted", decode(t, w)["error"])

	w = api.do(http.MethodPost, "/api/v1/photos/nope/like", nil, actor)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLikeExpiredPhoto(t *testing.T) {
	api := newTestAPI(t)
	past := time.Now().Add(-time.Hour)
	api.store.Seed(models.Photo{ID: "old", ZoneID: "z", ExpiresAt: &past})

	w := api.do(http.MethodPost, "/api/v1/photos/old/like", nil, map[string]string{"X-Actor-Id": "sam"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "photo_expired", decode(t, w)["error"])
}

func TestViewsAndComments(t *testing.T) {
	api := newTestAPI(t)
	api.store.Seed(models.Photo{ID: "p1"})

	w := api.do(http.MethodPost, "/api/v1/photos/p1/views", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["views"])

	w = api.do(http.MethodPost, "/api/v1/photos/p1/comments", strings.NewReader(`{"userInitials":"AB","content":"wow"}`),
		map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"wow"}, api.comments.added)

	w = api.do(http.MethodPost, "/api/v1/photos/p1/comments", strings.NewReader(`{"content":"  "}`),
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/photos/p1/comments", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = api.do(http.MethodGet, "/api/v1/photos/missing/comments", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"])
}

func TestAdminRoutesNeedToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/admin/reap", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, api.sweeper.calls)

	w = api.do(http.MethodPost, "/api/v1/admin/reap", nil, map[string]string{"X-Admin-Token": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["deleted"])
}

func TestAdminDeletePhotos(t *testing.T) {
	api := newTestAPI(t)
	api.store.Seed(
		models.Photo{ID: "p1", ZoneID: "z", Assets: models.AssetRefs{ImageKey: "p1.png", ThumbnailKey: "p1_thumb.jpeg"}},
		models.Photo{ID: "p2", ZoneID: "z", Assets: models.AssetRefs{ImageKey: "p2.png", ThumbnailKey: "p2_thumb.jpeg"}},
	)
	headers := map[string]string{"X-Admin-Token": "admin", "Content-Type": "application/json"}

	w := api.do(http.MethodDelete, "/api/v1/admin/photos", strings.NewReader(`{"ids":["p1","p2","p3"]}`), headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["deleted"])
	assert.Zero(t, api.store.Len())
	assert.ElementsMatch(t, []models.AssetRefs{
		{ImageKey: "p1.png", ThumbnailKey: "p1_thumb.jpeg"},
		{ImageKey: "p2.png", ThumbnailKey: "p2_thumb.jpeg"},
	}, api.assets.removed)

	api.store.Seed(models.Photo{ID: "p4", ZoneID: "z"})
	api.store.Fail["DeletePhotos"] = errors.New("connection reset")
	w = api.do(http.MethodDelete, "/api/v1/admin/photos", strings.NewReader(`{"ids":["p4"]}`), headers)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Len(t, api.assets.removed, 2)
	delete(api.store.Fail, "DeletePhotos")

	w = api.do(http.MethodDelete, "/api/v1/admin/photos", strings.NewReader(`not json`), headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminReevaluateZone(t *testing.T) {
	api := newTestAPI(t)
	later := time.Now().Add(time.Hour)
	api.store.Seed(models.Photo{ID: "p1", ZoneID: "z", ExpiresAt: &later}, models.Photo{ID: "p2", ZoneID: "z", ExpiresAt: &later})

	w := api.do(http.MethodPost, "/api/v1/admin/zones/z/reevaluate", nil, map[string]string{"X-Admin-Token": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["reverted"])
	for _, p := range api.store.Zone("z") {
		assert.Nil(t, p.ExpiresAt)
	}
}
