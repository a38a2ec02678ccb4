package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/marking-service/internal/services"
	"github.com/SAP-F-2025/marking-service/internal/utils"
	"github.com/SAP-F-2025/marking-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	markingHandler *MarkingHandler
}

func NewHandlerManager(
	markingService services.MarkingService,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		markingHandler: NewMarkingHandler(markingService, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		marking := v1.Group("/marking")
		{
			// Batches
			marking.POST("/batches", hm.markingHandler.SubmitBatch)
			marking.GET("/batches/:batch_id/stats", hm.markingHandler.GetBatchStats)

			// Live state and results
			marking.GET("/state", hm.markingHandler.GetState)
			marking.GET("/results", hm.markingHandler.ListResults)
			marking.GET("/results/:question_id", hm.markingHandler.GetResult)
			marking.DELETE("/results", hm.markingHandler.ClearResults)

			// Export and notifications
			marking.POST("/export", hm.markingHandler.ExportResults)
			marking.GET("/notifications", hm.markingHandler.ListNotifications)
		}
	}
}

// NewRouter builds the gin engine with logging middleware and all routes.
func NewRouter(hm *HandlerManager, logger utils.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.RequestID(services.WithRequestID))
	router.Use(utils.LoggerMiddleware(logger, "/health"))
	router.Use(utils.ContextLogger(logger))
	hm.SetupRoutes(router)
	return router
}

// HealthCheck reports that the process is serving
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "marking-service",
	})
}
