package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"geodrop/internal/config"
	"geodrop/internal/middleware"
	"geodrop/internal/models"
	"geodrop/internal/reaper"
	"geodrop/internal/service"
)

type Lifecycle interface {
	Like(ctx context.Context, photoID, actorID string) (models.Photo, error)
	Dislike(ctx context.Context, photoID, actorID string) (models.Photo, error)
	DeletePhotos(ctx context.Context, ids []string) (int, error)
	ReevaluateZone(ctx context.Context, zoneID string) ([]models.Photo, error)
}

type Uploader interface {
	Upload(ctx context.Context, input service.UploadInput) (models.Photo, error)
}

type Photos interface {
	List(ctx context.Context, limit int, order models.PhotoOrder) ([]models.Photo, error)
	Get(ctx context.Context, id string) (models.Photo, error)
	IncrementViews(ctx context.Context, id string) (int64, error)
}

type Comments interface {
	Add(ctx context.Context, photoID, initials, content string) (models.Comment, error)
	List(ctx context.Context, photoID string) ([]models.Comment, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (reaper.Result, error)
}

// Deps wires the handler set. Stream and Checks may be empty.
type Deps struct {
	Lifecycle Lifecycle
	Uploads   Uploader
	Photos    Photos
	Comments  Comments
	Reaper    Sweeper
	Stream    http.Handler
	Limiter   *middleware.RateLimiter
	URLFor    func(key string, thumbnail bool) string
	Checks    map[string]func(ctx context.Context) error
}

type HandlerSet struct {
	log  zerolog.Logger
	cfg  *config.AppConfig
	deps Deps
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	}
	return HandlerSet{
		log:  log.With().Str("component", "http").Logger(),
		cfg:  cfg,
		deps: deps,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	limited := middleware.RateLimit(h.deps.Limiter)

	photos := v1.Group("/photos")
	{
		photos.GET("", h.ListPhotos)
		photos.POST("", limited, h.CreatePhoto)
		photos.GET("/:id", h.GetPhoto)
		photos.POST("/:id/like", limited, h.Like)
		photos.POST("/:id/dislike", limited, h.Dislike)
		photos.POST("/:id/views", limited, h.IncrementViews)
		photos.GET("/:id/comments", h.ListComments)
		photos.POST("/:id/comments", limited, h.AddComment)
	}

	if h.deps.Stream != nil {
		v1.GET("/stream", gin.WrapH(h.deps.Stream))
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminToken(h.cfg.Security.AdminToken))
	admin.POST("/reap", h.Reap)
	admin.DELETE("/photos", h.DeletePhotos)
	admin.POST("/zones/:zone/reevaluate", h.ReevaluateZone)
}

func (h HandlerSet) view(p models.Photo) models.PhotoView {
	return p.View(h.deps.URLFor)
}

func (h HandlerSet) views(photos []models.Photo) []models.PhotoView {
	out := make([]models.PhotoView, 0, len(photos))
	for _, p := range photos {
		out = append(out, h.view(p))
	}
	return out
}
