package runs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

const maxRunsLimit = 200

// List returns recent runs, newest first
// @Summary      List runs
// @Description  Returns the most recent runs, newest first.
// @Tags         runs
// @Produce      json
// @Param        limit query int false "Maximum runs to return" default(20)
// @Success      200 {object} types.RunsResponse "Runs"
// @Router       /api/v1/runs [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Runs == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "run records are not configured",
			})
			return
		}

		limit := types.IntQuery(c, "limit", 20, maxRunsLimit)
		list, err := deps.Runs.List(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "listing runs failed",
				Error:   err.Error(),
			})
			return
		}

		views := types.RunViews(list)
		c.JSON(http.StatusOK, types.RunsResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Runs:         views,
			Count:        len(views),
		})
	}
}
