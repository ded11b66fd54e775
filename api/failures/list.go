package failures

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

const maxFailuresLimit = 500

// List returns recent pipeline failures, newest first
// @Summary      List failures
// @Description  Returns the most recent failure log entries across all runs, newest first. Each entry names the stage, episode and error kind.
// @Tags         failures
// @Produce      json
// @Param        limit query int false "Maximum entries to return" default(50)
// @Success      200 {object} types.FailuresResponse "Failure log"
// @Failure      500 {object} types.ErrorResponse "Store failure"
// @Router       /api/v1/failures [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Store == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "episode store is not configured",
			})
			return
		}

		limit := types.IntQuery(c, "limit", 50, maxFailuresLimit)
		list, err := deps.Store.Failures(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "listing failures failed",
				Error:   err.Error(),
			})
			return
		}

		views := types.FailureViews(list)
		c.JSON(http.StatusOK, types.FailuresResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Failures:     views,
			Count:        len(views),
		})
	}
}
