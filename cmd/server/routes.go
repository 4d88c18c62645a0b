package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/middleware"
	"github.com/huangang/uptask/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.Server.FrontendURL))
	r.Use(middleware.AuditLog())

	// Identity routes are public, so they get a per-IP limit
	identityLimiter := middleware.NewRateLimiter(5, 10)

	r.GET("/health", svc.healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		users := api.Group("/users", identityLimiter.Middleware())
		{
			users.POST("", svc.authHandler.Register)
			users.POST("/login", svc.authHandler.Login)
			users.GET("/confirm/:token", svc.authHandler.Confirm)
			users.POST("/forgot-password", svc.authHandler.ForgotPassword)
			users.GET("/forgot-password/:token", svc.authHandler.CheckResetToken)
			users.POST("/forgot-password/:token", svc.authHandler.ResetPassword)
			users.GET("/profile", middleware.AuthRequired(), svc.authHandler.Profile)
		}

		// Browsers cannot set headers on WebSocket or EventSource requests
		stream := api.Group("", middleware.StreamAuth())
		{
			stream.GET("/realtime", svc.realtimeHandler.ServeWebSocket)
			stream.GET("/events/projects/:id", svc.realtimeHandler.StreamProject)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			projects := svc.projectHandler
			protected.GET("/projects", projects.List)
			protected.POST("/projects", projects.Create)
			protected.GET("/projects/:id", projects.GetByID)
			protected.PUT("/projects/:id", projects.Update)
			protected.DELETE("/projects/:id", projects.Delete)
			protected.POST("/projects/colaboradores", projects.SearchCollaborator)
			protected.POST("/projects/colaboradores/:id", projects.AddCollaborator)
			protected.POST("/projects/eliminar-colaborador/:id", projects.RemoveCollaborator)

			tasks := svc.taskHandler
			protected.POST("/tasks", tasks.Create)
			protected.GET("/tasks/:id", tasks.GetByID)
			protected.PUT("/tasks/:id", tasks.Update)
			protected.DELETE("/tasks/:id", tasks.Delete)
			protected.POST("/tasks/state/:id", tasks.Toggle)
		}
	}
}
