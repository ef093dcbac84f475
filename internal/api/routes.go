package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(handlers *Handlers) *gin.Engine {
	router := gin.Default()

	// CORS middleware for the browser frontend
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "fiscaal-rapportage",
		})
	})

	api := router.Group("/api")
	{
		// Workflow metadata
		api.GET("/workflow/stages", handlers.ListStagesHandler)

		// Dossier dashboard
		dossiers := api.Group("/dossiers")
		{
			dossiers.POST("", handlers.CreateDossierHandler)
			dossiers.GET("", handlers.ListDossiersHandler)
			dossiers.POST("/import", handlers.ImportDossierHandler)

			dossiers.GET("/:id", handlers.GetDossierHandler)
			dossiers.PUT("/:id", handlers.UpdateDossierHandler)
			dossiers.DELETE("/:id", handlers.DeleteDossierHandler)
			dossiers.POST("/:id/duplicate", handlers.DuplicateDossierHandler)
			dossiers.POST("/:id/archive", handlers.ArchiveDossierHandler)
			dossiers.GET("/:id/export", handlers.ExportDossierHandler)
			dossiers.GET("/:id/export/pdf", handlers.ExportPDFHandler)
			dossiers.POST("/:id/send-email", handlers.SendEmailHandler)

			// Pipeline stages
			dossiers.POST("/:id/stages/:key/run", handlers.RunStageHandler)
			dossiers.POST("/:id/stages/:key/substeps/:substep/run", handlers.RunSubstepHandler)
			dossiers.PUT("/:id/stages/:key/result", handlers.EditStageResultHandler)

			// Concept version history
			dossiers.GET("/:id/versions", handlers.ListVersionsHandler)
			dossiers.POST("/:id/versions/:number/restore", handlers.RestoreVersionHandler)

			// Express mode
			dossiers.POST("/:id/express", handlers.StartExpressHandler)

			// Adjustment dialog
			dossiers.POST("/:id/adjustments/analyze", handlers.AnalyzeAdjustmentsHandler)
			dossiers.POST("/:id/adjustments/apply", handlers.ApplyAdjustmentsHandler)
		}

		// Express job progress
		express := api.Group("/express")
		{
			express.GET("/:jobId/status", handlers.ExpressStatusHandler)
			express.GET("/:jobId/stream", handlers.StreamExpressHandler)
			express.POST("/:jobId/cancel", handlers.CancelExpressHandler)
		}
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
