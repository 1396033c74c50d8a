package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type deletePhotosRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// Reap runs a sweep inline rather than waiting for the schedule.
func (h HandlerSet) Reap(c *gin.Context) {
	result, err := h.deps.Reaper.Sweep(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeletePhotos removes photos, their comments and their assets. Unknown ids
// are ignored.
func (h HandlerSet) DeletePhotos(c *gin.Context) {
	var req deletePhotosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body")
		return
	}

	deleted, err := h.deps.Lifecycle.DeletePhotos(c.Request.Context(), req.IDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ReevaluateZone reverts a zone left finite below the threshold.
func (h HandlerSet) ReevaluateZone(c *gin.Context) {
	reverted, err := h.deps.Lifecycle.ReevaluateZone(c.Request.Context(), c.Param("zone"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reverted": len(reverted)})
}
