package runs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
	"github.com/podforge/digest-api/internal/models"
	runsvc "github.com/podforge/digest-api/internal/services/runs"
)

// Get returns one run with its counters
// @Summary      Get a run
// @Description  Returns the run record with progress counters and, once terminal, final stats.
// @Tags         runs
// @Produce      json
// @Param        id path int true "Run ID"
// @Success      200 {object} types.RunResponse "Run"
// @Failure      404 {object} types.ErrorResponse "Run not found"
// @Router       /api/v1/runs/{id} [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		run, ok := loadRun(c, deps, id)
		if !ok {
			return
		}

		c.JSON(http.StatusOK, types.RunResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Run:          types.RunView(run),
		})
	}
}

// loadRun fetches a run and writes the error response on failure.
func loadRun(c *gin.Context, deps *types.Dependencies, id uint) (*models.Run, bool) {
	if deps.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Status:  types.StatusError,
			Message: "run records are not configured",
		})
		return nil, false
	}
	run, err := deps.Runs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, runsvc.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "run not found",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Status:  types.StatusError,
			Message: "loading run failed",
			Error:   err.Error(),
		})
		return nil, false
	}
	return run, true
}
