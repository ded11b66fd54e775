package episodes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

const maxRecentDays = 90

// Recent lists the stored episodes inside the window, newest first
// @Summary      List recent episodes
// @Description  Returns stored episodes published inside the window, optionally filtered by podcast. Transcript and summary presence is reported for the requested mode.
// @Tags         episodes
// @Produce      json
// @Param        days query int false "Window size in days" default(7)
// @Param        podcast query []string false "Podcast names to include" collectionFormat(multi)
// @Param        mode query string false "Artifact mode for the presence flags" Enums(test, full)
// @Success      200 {object} types.EpisodesResponse "Episodes in the window"
// @Failure      400 {object} types.ErrorResponse "Invalid mode"
// @Failure      500 {object} types.ErrorResponse "Store failure"
// @Router       /api/v1/episodes/recent [get]
func Recent(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Store == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "episode store is not configured",
			})
			return
		}

		mode, ok := types.ModeQuery(c)
		if !ok {
			return
		}
		days := types.IntQuery(c, "days", 7, maxRecentDays)
		podcasts := c.QueryArray("podcast")

		since := time.Now().AddDate(0, 0, -days)
		eps, err := deps.Store.Recent(c.Request.Context(), since, podcasts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "listing episodes failed",
				Error:   err.Error(),
			})
			return
		}

		views := types.EpisodeViews(eps, mode)
		c.JSON(http.StatusOK, types.EpisodesResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Episodes:     views,
			Count:        len(views),
			Mode:         string(mode),
		})
	}
}
