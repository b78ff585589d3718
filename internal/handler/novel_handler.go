package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/readweb/internal/pkg/errcode"
	"github.com/xxxsen/readweb/internal/pkg/response"
	"github.com/xxxsen/readweb/internal/service"
)

type NovelHandler struct {
	novels *service.NovelService
}

func NewNovelHandler(novels *service.NovelService) *NovelHandler {
	return &NovelHandler{novels: novels}
}

type novelRequest struct {
	Title string `json:"title"`
}

func (h *NovelHandler) Create(c *gin.Context) {
	var req novelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	novel, err := h.novels.Create(c.Request.Context(), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"novel": novel})
}

func (h *NovelHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	novel, err := h.novels.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"novel": novel})
}
