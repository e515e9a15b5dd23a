package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelibr/thumbnail-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "thumbnail-queue-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/thumbnail-jobs")
		{
			// POST /api/v1/thumbnail-jobs - enqueue/reuse a render job
			jobs.POST("", jobHandler.EnqueueJob)

			// GET /api/v1/thumbnail-jobs - list with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// POST /api/v1/thumbnail-jobs/dequeue - lease the oldest pending job
			jobs.POST("/dequeue", jobHandler.DequeueJob)

			// GET /api/v1/thumbnail-jobs/:job_id - job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/thumbnail-jobs/:job_id/complete - report success
			jobs.POST("/:job_id/complete", jobHandler.CompleteJob)

			// POST /api/v1/thumbnail-jobs/:job_id/fail - report a failed attempt
			jobs.POST("/:job_id/fail", jobHandler.FailJob)

			// POST /api/v1/thumbnail-jobs/:job_id/reset - regenerate
			jobs.POST("/:job_id/reset", jobHandler.ResetJob)

			// POST /api/v1/thumbnail-jobs/:job_id/events - phase audit log
			jobs.POST("/:job_id/events", jobHandler.AppendEvent)
		}

		models := v1.Group("/models")
		{
			// GET /api/v1/models/:model_id/thumbnail - UI thumbnail state
			models.GET("/:model_id/thumbnail", jobHandler.GetModelThumbnail)
		}
	}

	return r
}
