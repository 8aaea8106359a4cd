package router

import (
	"github.com/gin-gonic/gin"

	"github.com/noopta/situationship-ai/internal/http/handler"
	"github.com/noopta/situationship-ai/internal/service"
)

type RouterConfig struct {
	Upload handler.UploadLimits
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)

		analysisHandler := handler.NewAnalysisHandler(services.Analysis(), cfg.Upload)
		AnalysisRouter(api, analysisHandler)
	}
}
