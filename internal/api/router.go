// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/aulanotes/AulaNotes/internal/config"
	"github.com/aulanotes/AulaNotes/internal/di"
	"github.com/aulanotes/AulaNotes/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the HTTP routes. Services must already be
// registered in the DI container.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	documentService, ok := container.Get("document").(*services.DocumentService)
	if !ok {
		return nil, fmt.Errorf("document service not initialized")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("progress service not initialized")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("llm service not initialized")
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(MetricsMiddleware())

	handler := NewHandler(documentService, progressService, llmService)
	wsHandler := NewWebSocketHandler(progressService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api")
	{
		docGroup := apiGroup.Group("/documents")
		{
			docGroup.GET("", handler.ListDocuments)
			docGroup.POST("", StructureRateLimit(), handler.CreateDocument)
			docGroup.GET("/:id", handler.GetDocument)
			docGroup.PATCH("/:id", EditRateLimit(), handler.EditDocument)
			docGroup.DELETE("/:id", handler.DeleteDocument)
			docGroup.POST("/:id/blocks/:block_id", EditRateLimit(), handler.EditBlock)
			docGroup.GET("/:id/export", handler.ExportDocument)
		}

		llmGroup := apiGroup.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		apiGroup.GET("/progress/:taskID", handler.GetProgress)
		apiGroup.GET("/metrics", handler.GetMetrics)

		wsGroup := apiGroup.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	r.GET("/ws/progress/:taskID", wsHandler.ProgressWebSocket)

	return r, nil
}

// corsMiddleware enables cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
