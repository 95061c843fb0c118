// Package api implements the management HTTP API for the crawler service.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leobrain/crawler/internal/logger"
)

// SetupRouter builds the gin router with every management route mounted.
// metricsHandler serves GET /metrics; pass nil to leave the route out.
func SetupRouter(
	log logger.Interface,
	health *HealthHandler,
	crawlers *CrawlersHandler,
	jobs *JobsHandler,
	contents *ContentsHandler,
	metricsHandler http.Handler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	if health != nil {
		router.GET("/health", health.Check)
	}
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := router.Group("/api/v1")
	RegisterRoutes(v1, crawlers, jobs, contents)

	return router
}

// loggingMiddleware logs every request once the handler has finished.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// corsMiddleware allows browser dashboards on other origins to call the
// API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, "+
				"Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
