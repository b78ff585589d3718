package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/readweb/internal/pkg/errcode"
	"github.com/xxxsen/readweb/internal/pkg/response"
	"github.com/xxxsen/readweb/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type commentRequest struct {
	UserID  int64  `json:"user_id"`
	Content string `json:"content"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	novelID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), novelID, req.UserID, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"comment": comment})
}

func (h *CommentHandler) List(c *gin.Context) {
	novelID, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid limit")
			return
		}
		limit = v
	}
	comments, err := h.comments.ListRecent(c.Request.Context(), novelID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"comments": comments})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
