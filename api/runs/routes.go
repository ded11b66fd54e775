package runs

import (
	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// RegisterRoutes wires the run endpoints onto the given router group.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.POST("", Create(deps))
	router.GET("", List(deps))
	router.GET("/:id", Get(deps))
	router.GET("/:id/events", Events(deps))
	router.POST("/:id/cancel", Cancel(deps))
}
