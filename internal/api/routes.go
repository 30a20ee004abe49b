package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/oscontrib/tracker/internal/auth"
)

// @title OS Contribution Tracker API
// @version 1.0
// @description API for tracking and scoring open-source contributions on GitHub
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// SetupRouter configures the API routes
func SetupRouter(h *Handler, tokens *auth.TokenManager) *gin.Engine {
	r := gin.Default()

	// API documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authenticated := auth.Middleware(tokens)

	// API v1 group
	v1 := r.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", h.Signup)
			authRoutes.POST("/login", h.Login)
			authRoutes.GET("/profile", authenticated, h.GetProfile)
		}

		profile := v1.Group("/profile")
		{
			profile.GET("", authenticated, h.GetProfile)
			profile.POST("/github", authenticated, h.ConnectGitHub)
			profile.POST("/refresh", authenticated, h.RefreshContributions)

			// Public profile lookup, must stay after the fixed routes.
			profile.GET("/:profileURL", h.PublicProfile)
		}

		repositories := v1.Group("/repositories")
		{
			repositories.GET("/search", h.SearchRepositories)
		}
	}

	return r
}
