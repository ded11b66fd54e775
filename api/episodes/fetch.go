package episodes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/api/types"
	"github.com/podforge/digest-api/internal/catalog"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Fetch pulls the recent window from the configured sources and persists
// every episode found, so the rows are selectable for a run
// @Summary      Fetch recent episodes
// @Description  Fetches the recent window for the selected podcasts from RSS and the directories, storing every episode. An empty body selects the whole catalog.
// @Tags         episodes
// @Accept       json
// @Produce      json
// @Param        request body types.FetchEpisodesRequest false "Podcast selection"
// @Param        mode query string false "Artifact mode for the presence flags" Enums(test, full)
// @Success      200 {object} types.EpisodesResponse "Episodes found in the window"
// @Failure      400 {object} types.ErrorResponse "Unknown podcast or invalid body"
// @Failure      502 {object} types.ErrorResponse "Upstream feed or directory failure"
// @Router       /api/v1/episodes/fetch [post]
func Fetch(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Pipeline == nil {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "pipeline is not configured",
			})
			return
		}

		// An empty body means the whole catalog over the default window.
		var req types.FetchEpisodesRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Status:  types.StatusError,
				Message: "invalid request body",
				Error:   err.Error(),
			})
			return
		}
		mode, ok := types.ModeQuery(c)
		if !ok {
			return
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
