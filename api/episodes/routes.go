package episodes

import (
	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// RegisterRoutes wires the episode endpoints onto the given router group.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.POST("/fetch", Fetch(deps))
	router.GET("/recent", Recent(deps))
}
