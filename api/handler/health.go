package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/qaprobe/models"
	"github.com/use-agent/qaprobe/store"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health. Status is "busy" when
// every run slot is taken.
func Health(st *store.Store, maxRuns int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := st.Active()

		status := "healthy"
		if maxRuns > 0 && active >= maxRuns {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			ActiveRuns: active,
			MaxRuns:    maxRuns,
			StoredRuns: st.Len(),
			Version:    Version,
		})
	}
}
