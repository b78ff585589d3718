package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/readweb/internal/pkg/response"
	"github.com/xxxsen/readweb/internal/service"
)

type SummaryHandler struct {
	summaries *service.SummaryService
}

func NewSummaryHandler(summaries *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// Get serves the cached summary or recomputes it. Summarizer trouble still
// yields ok:true with a degraded summary; only store failures are errors.
func (h *SummaryHandler) Get(c *gin.Context) {
	novelID, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := h.summaries.GetSummary(c.Request.Context(), novelID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"summary":    res.Summary,
		"from_cache": res.FromCache,
		"state":      res.State,
	})
}
