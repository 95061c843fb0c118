package api

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the v1 management routes on the given group. Nil
// handlers leave their routes unregistered.
func RegisterRoutes(
	v1 *gin.RouterGroup,
	crawlers *CrawlersHandler,
	jobs *JobsHandler,
	contents *ContentsHandler,
) {
	if crawlers != nil {
		group := v1.Group("/crawlers")
		group.GET("/sites", crawlers.ListSites)
		group.GET("/sites/:name", crawlers.GetSite)
		group.GET("/sites/:name/status", crawlers.GetSiteStatus)
		group.POST("/sites/:name/crawl", crawlers.TriggerCrawl)
		group.POST("/sites/batch-crawl", crawlers.TriggerBatchCrawl)
	}

	if jobs != nil {
		group := v1.Group("/jobs")
		group.GET("", jobs.ListJobs)
		group.GET("/:id", jobs.GetJob)
	}

	if contents != nil {
		group := v1.Group("/contents")
		group.GET("", contents.ListContents)
		group.GET("/:id", contents.GetContent)
		group.GET("/:id/body", contents.GetContentBody)
		group.POST("", contents.CreateContent)
	}
}
