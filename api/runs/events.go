package runs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
	"github.com/podforge/digest-api/internal/services/pipeline"
)

// Events returns the progress event log for a run
// @Summary      Get run events
// @Description  Returns the buffered progress events for the run alongside its current counters. The buffer holds the most recent run only; older runs return an empty list.
// @Tags         runs
// @Produce      json
// @Param        id path int true "Run ID"
// @Success      200 {object} types.RunEventsResponse "Run with events"
// @Failure      404 {object} types.ErrorResponse "Run not found"
// @Router       /api/v1/runs/{id}/events [get]
func Events(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		run, ok := loadRun(c, deps, id)
		if !ok {
			return
		}

		var events []pipeline.Event
		if deps.Pipeline != nil {
			events = deps.Pipeline.Events(id)
		}
		c.JSON(http.StatusOK, types.RunEventsResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Run:          types.RunView(run),
			Events:       events,
			Count:        len(events),
		})
	}
}
