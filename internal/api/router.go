package api

import (
	"github.com/gin-gonic/gin"

	"github.com/classlens/classlens/internal/api/handler"
	"github.com/classlens/classlens/internal/api/middleware"
	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/repository"
	"github.com/classlens/classlens/internal/scoring"
)

// Deps bundles the router's collaborators.
type Deps struct {
	Videos      *repository.VideoRepository
	Assessments *repository.AssessmentRepository
	Audits      *repository.AuditRepository
	Scores      *scoring.Service
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(cfg *config.ServerConfig, deps Deps) *gin.Engine {
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
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(deps.Videos)
	rosterHandler := handler.NewRosterHandler(deps.Scores)
	videoHandler := handler.NewVideoHandler(deps.Videos, deps.Assessments, deps.Audits)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/roster", rosterHandler.Roster)
		v1.GET("/teachers/:id/dashboard", rosterHandler.Dashboard)
		v1.GET("/teachers/:id/summary-insights", rosterHandler.SummaryInsights)
		v1.GET("/teachers/:id/peer-recommendations", rosterHandler.PeerRecommendations)
		v1.GET("/videos/:id/status", videoHandler.Status)
	}

	return r
}
