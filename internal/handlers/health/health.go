package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler reports liveness. A missing upstream URL is surfaced here so
// deployments can catch it before the first lead is lost.
func Handler(upstreamConfigured bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":              "ok",
			"upstream_configured": upstreamConfigured,
		})
	}
}
