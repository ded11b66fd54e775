package podcasts

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// List returns the configured podcast catalog
// @Summary      List catalog podcasts
// @Description  Returns every configured podcast with its feeds and download strategy
// @Tags         podcasts
// @Produce      json
// @Success      200 {object} types.PodcastsResponse "Configured podcasts"
// @Failure      503 {object} types.ErrorResponse "Catalog not loaded"
// @Router       /api/v1/podcasts [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Catalog == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "podcast catalog is not loaded",
			})
			return
		}

		views := types.PodcastViews(deps.Catalog.All())
		c.JSON(http.StatusOK, types.PodcastsResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Podcasts:     views,
			Count:        len(views),
		})
	}
}
