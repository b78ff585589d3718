package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/readweb/internal/middleware"
)

type RouterDeps struct {
	Novels          *NovelHandler
	Comments        *CommentHandler
	Summaries       *SummaryHandler
	Metrics         http.Handler
	SummaryCooldown time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/novels", deps.Novels.Create)
	api.GET("/novels/:id", deps.Novels.Get)

	api.GET("/novels/:id/comments", deps.Comments.List)
	api.POST("/novels/:id/comments", deps.Comments.Create)
	api.DELETE("/comments/:id", deps.Comments.Delete)

	api.POST("/novels/:id/comment-summary", middleware.Cooldown(deps.SummaryCooldown), deps.Summaries.Get)

	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}
