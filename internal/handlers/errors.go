package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"geodrop/internal/geo"
	"geodrop/internal/lifecycle"
	"geodrop/internal/middleware"
	"geodrop/internal/realtime"
	"geodrop/internal/repository"
	"geodrop/internal/service"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{geo.ErrInvalidCoordinates, http.StatusBadRequest, "invalid_coordinates"},
	{service.ErrEmptyFile, http.StatusBadRequest, "file_required"},
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{service.ErrUnsupportedType, http.StatusUnsupportedMediaType, "unsupported_type"},
	{service.ErrContentTypeMismatch, http.StatusBadRequest, "content_type_mismatch"},
	{service.ErrInvalidComment, http.StatusBadRequest, "invalid_comment"},
	{lifecycle.ErrActorRequired, http.StatusBadRequest, "actor_required"},
	{realtime.ErrUnknownEntity, http.StatusBadRequest, "unknown_entity"},
	{repository.ErrPhotoNotFound, http.StatusNotFound, "not_found"},
	{lifecycle.ErrDislikeNotAllowed, http.StatusForbidden, "dislike_not_allowed"},
	{lifecycle.ErrAlreadyInteracted, http.StatusConflict, "already_interacted"},
	{lifecycle.ErrPhotoExpired, http.StatusConflict, "photo_expired"},
	{lifecycle.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError maps domain errors to responses. Anything unrecognised is a
// store failure the client may retry.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.code, "message": err.Error()})
			return
		}
	}

	h.log.Error().Err(err).
		Str("path", c.FullPath()).
		Str("request_id", middleware.RequestIDFrom(c)).
		Msg("request failed")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
}

func badRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}
