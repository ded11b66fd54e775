package runs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
)

// Cancel requests cancellation of a running run
// @Summary      Cancel a run
// @Description  Asks the pipeline to stop after the episodes already in flight finish. Work completed so far stays persisted.
// @Tags         runs
// @Produce      json
// @Param        id path int true "Run ID"
// @Success      202 {object} types.RunResponse "Cancellation requested"
// @Failure      404 {object} types.ErrorResponse "Run not found"
// @Failure      409 {object} types.ErrorResponse "Run already finished"
// @Router       /api/v1/runs/{id}/cancel [post]
func Cancel(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		run, ok := loadRun(c, deps, id)
		if !ok {
			return
		}
		if run.IsTerminal() {
			c.JSON(http.StatusConflict, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "run already finished",
			})
			return
		}

		if deps.Pipeline != nil {
			deps.Pipeline.Cancel()
		}

		c.JSON(http.StatusAccepted, types.RunResponse{
			BaseResponse: types.BaseResponse{
				Status:  types.StatusProcessing,
				Message: "cancellation requested",
			},
			Run: types.RunView(run),
		})
	}
}
