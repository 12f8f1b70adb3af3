package handlers

import (
	"context"
	"net/http"
	"time"

	"eurodoor_admin/internal/services"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports "ok" when every dependency answers, 503 otherwise.
func Health(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(gin.H, len(deps))
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}

// SetupRoutes registers the API on router.
func SetupRoutes(router *gin.Engine, authSvc services.AuthService, authHandler *AuthHandler, reportHandler *ReportHandler, deps map[string]Pinger) {
	router.GET("/healthz", Health(deps))

	api := router.Group("/api")
	api.Use(ErrorHandler())
	{
		api.POST("/admin/login", authHandler.Login)

		secured := api.Group("")
		secured.Use(RequireSession(authSvc))
		{
			secured.POST("/admin/logout", authHandler.Logout)

			secured.GET("/reports", reportHandler.ListReports)
			secured.POST("/reports/:report/views", reportHandler.MountView)

			secured.GET("/views/:id", reportHandler.GetView)
			secured.PATCH("/views/:id", reportHandler.UpdateView)
			secured.DELETE("/views/:id", reportHandler.UnmountView)
			secured.GET("/views/:id/export", reportHandler.ExportView)

			secured.GET("/audit/exports", reportHandler.ListExportAudits)
			secured.GET("/audit/logins", reportHandler.ListLoginAudits)
		}
	}
}
