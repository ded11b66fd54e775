package runs

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/pipeline"
	runsvc "github.com/podforge/digest-api/internal/services/runs"
	"github.com/podforge/digest-api/internal/services/store"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Create starts a processing run over the selected batch
// @Summary      Start a run
// @Description  Creates a run record and processes the batch in the background. The batch is either the stored episodes named in the body, or everything fetched for the selected podcasts in the window. Returns 202 with the run ID to poll.
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        request body types.StartRunRequest false "Batch selection"
// @Success      202 {object} types.RunResponse "Run accepted"
// @Failure      400 {object} types.ErrorResponse "Unknown mode or podcast"
// @Failure      404 {object} types.ErrorResponse "A named episode is not stored"
// @Failure      409 {object} types.ErrorResponse "Another run is already in progress"
// @Router       /api/v1/runs [post]
func Create(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Pipeline == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "pipeline is not configured",
			})
			return
		}

		var req types.StartRunRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "invalid request body",
				Error:   err.Error(),
			})
			return
		}
		mode, err := models.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Status:  types.StatusError,
				Message: err.Error(),
			})
			return
		}

		eps, ok := resolveBatch(c, deps, &req)
		if !ok {
			return
		}

		run, err := deps.Pipeline.StartRun(c.Request.Context(), eps, mode)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) || errors.Is(err, runsvc.ErrRunActive) {
				c.JSON(http.StatusConflict, types.ErrorResponse{
					Status:  types.StatusError,
					Message: "another run is already in progress",
					Error:   err.Error(),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "starting run failed",
				Error:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusAccepted, types.RunResponse{
			BaseResponse: types.BaseResponse{
				Status:  types.StatusProcessing,
				Message: "run started",
			},
			Run: types.RunView(run),
		})
	}
}

// resolveBatch turns the request into stored episodes. Explicit keys win
// over podcast selection; an empty selection means the whole catalog.
func resolveBatch(c *gin.Context, deps *types.Dependencies, req *types.StartRunRequest) ([]models.Episode, bool) {
	if len(req.Episodes) > 0 {
		if deps.Store == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "episode store is not configured",
			})
			return nil, false
		}
		eps := make([]models.Episode, 0, len(req.Episodes))
		for _, key := range req.Episodes {
			ep, err := deps.Store.Episode(c.Request.Context(), key)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					c.JSON(http.StatusNotFound, types.ErrorResponse{
						Status:  types.StatusError,
						Message: "episode is not stored; fetch it first",
						Error:   err.Error(),
					})
					return nil, false
				}
				c.JSON(http.StatusInternalServerError, types.ErrorResponse{
					Status:  types.StatusError,
					Message: "loading episode failed",
					Error:   err.Error(),
				})
				return nil, false
			}
			eps = append(eps, *ep)
		}
		return eps, true
	}

	eps, err := deps.Pipeline.ListRecentEpisodes(c.Request.Context(), req.Podcasts, req.DaysBack, nil)
	if err != nil {
		status := errs.HTTPStatus(err)
		if errors.Is(err, catalog.ErrUnknownPodcast) {
			status = http.StatusBadRequest
		}
		c.JSON(status, types.ErrorResponse{
			Status:  types.StatusError,
			Message: "fetching episodes failed",
			Error:   err.Error(),
		})
		return nil, false
	}
	return eps, true
}
