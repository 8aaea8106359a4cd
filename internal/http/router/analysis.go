package router

import (
	"github.com/gin-gonic/gin"

	"github.com/noopta/situationship-ai/internal/http/handler"
)

func AnalysisRouter(router *gin.RouterGroup, h *handler.AnalysisHandler) {
	router.POST("/analyze", h.Analyze)
	router.GET("/analyses/:id", h.GetRun)
}
