package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/api/handler"
	"github.com/qs3c/repoinsight/internal/api/middleware"
)

type Router struct {
	analysisHandler  *handler.AnalysisHandler
	websocketHandler *handler.WebSocketHandler
	healthHandler    *handler.HealthHandler
	cfg              *config.Config
}

func NewRouter(
	analysisHandler *handler.AnalysisHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		analysisHandler:  analysisHandler,
		websocketHandler: websocketHandler,
		healthHandler:    healthHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", r.healthHandler.Handle)

	api := engine.Group("/api/v1")
	{
		// WebSocket 进度推送
		api.GET("/ws", r.websocketHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Create)
				analyses.POST("/batch", r.analysisHandler.CreateBatch)
				analyses.GET("", r.analysisHandler.List)
				analyses.GET("/:id", r.analysisHandler.Get)
				analyses.POST("/:id/cancel", r.analysisHandler.Cancel)
			}

			authenticated.POST("/cache/invalidate", r.analysisHandler.InvalidateCache)
		}
	}

	return engine
}
