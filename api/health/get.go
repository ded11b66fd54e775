package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// Get handles health check requests
// @Summary      Health check
// @Description  Reports service liveness together with database and catalog status
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]interface{} "Service is healthy"
// @Failure      503 {object} map[string]interface{} "Database unreachable"
// @Router       /health [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		code := http.StatusOK
		if deps != nil && deps.DB != nil {
			db := getDatabaseStatus(deps)
			response["database"] = db
			if db["status"] != "healthy" {
				response["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		} else {
			response["database"] = gin.H{"status": "not configured"}
		}

		if deps != nil && deps.Catalog != nil {
			response["catalog"] = gin.H{"podcasts": deps.Catalog.Len()}
		}

		c.JSON(code, response)
	}
}

// getDatabaseStatus returns the database connection status
func getDatabaseStatus(deps *types.Dependencies) gin.H {
	if deps.DB == nil || deps.DB.DB == nil {
		return gin.H{"status": "not configured"}
	}

	if err := deps.DB.HealthCheck(); err != nil {
		return gin.H{"status": "unhealthy", "error": err.Error()}
	}

	return gin.H{"status": "healthy"}
}
