package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geodrop/internal/middleware"
	"geodrop/internal/models"
	"geodrop/internal/service"
)

func (h HandlerSet) ListPhotos(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "invalid_limit")
			return
		}
		limit = v
	}

	photos, err := h.deps.Photos.List(c.Request.Context(), limit, models.PhotoOrder(c.Query("order")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.views(photos)})
}

func (h HandlerSet) GetPhoto(c *gin.Context) {
	photo, err := h.deps.Photos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(photo))
}

func (h HandlerSet) CreatePhoto(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.PostForm("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.PostForm("lon"), 64)
	if errLat != nil || errLon != nil {
		badRequest(c, "invalid_coordinates")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file_required")
		return
	}
	defer file.Close()

	photo, err := h.deps.Uploads.Upload(c.Request.Context(), service.UploadInput{
		File:         file,
		DeclaredType: header.Header.Get("Content-Type"),
		Latitude:     lat,
		Longitude:    lon,
		CreatedBy:    c.PostForm("createdBy"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(photo))
}

func (h HandlerSet) Like(c *gin.Context) {
	photo, err := h.deps.Lifecycle.Like(c.Request.Context(), c.Param("id"), middleware.ActorIDFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(photo))
}

func (h HandlerSet) Dislike(c *gin.Context) {
	photo, err := h.deps.Lifecycle.Dislike(c.Request.Context(), c.Param("id"), middleware.ActorIDFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(photo))
}

func (h HandlerSet) IncrementViews(c *gin.Context) {
	views, err := h.deps.Photos.IncrementViews(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "views": views})
}
