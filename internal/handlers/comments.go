package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addCommentRequest struct {
	UserInitials string `json:"userInitials"`
	Content      string `json:"content"`
}

func (h HandlerSet) ListComments(c *gin.Context) {
	comments, err := h.deps.Comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": comments})
}

func (h HandlerSet) AddComment(c *gin.Context) {
	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body")
		return
	}

	comment, err := h.deps.Comments.Add(c.Request.Context(), c.Param("id"), req.UserInitials, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
