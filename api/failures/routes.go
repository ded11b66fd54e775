package failures

import (
	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// RegisterRoutes wires the failure log endpoint onto the given router group.
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("", List(deps))
}
