package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/planscan/internal/api/handler"
	"github.com/timmy/planscan/internal/api/middleware"
	"github.com/timmy/planscan/internal/config"
)

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - parseService: parse boundary backing the v1 routes.
//   - jobStore: pinged by the health check; may be nil.
//   - cfg: server configuration (mode and CORS).
//
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(parseService handler.ParseService, jobStore handler.Pinger, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(jobStore)
	parseHandler := handler.NewParseHandler(parseService)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/parse", parseHandler.Parse)
		v1.GET("/parse-jobs/:id", parseHandler.GetJob)
	}

	return r
}
