package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// newRouter builds the worker's HTTP surface: a health endpoint and the
// Prometheus exposition endpoint.
func (w *Worker) newRouter() *gin.Engine {
	if w.cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"agent":  w.cfg.AgentName,
		})
	})
	router.GET("/metrics", gin.WrapH(w.metrics.Handler()))

	return router
}
