package podcasts

import (
	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// RegisterRoutes registers podcast catalog routes
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	// GET /api/v1/podcasts - List the configured catalog
	router.GET("", List(deps))
}
