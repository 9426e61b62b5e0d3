package routes

import (
	"errors"
	"net/http"

	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RegenerateSummaryHandler discards the cached summary for a community and
// generates a fresh one.
func RegenerateSummaryHandler(c echo.Context) error {
	type regenerateSummaryParams struct {
		CommunityID string `param:"community_id" validate:"required"`
	}

	type regenerateSummaryResponse struct {
		Message string                   `json:"message"`
		Summary *common.CommunitySummary `json:"summary,omitempty"`
	}

	params := new(regenerateSummaryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, regenerateSummaryResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, regenerateSummaryResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	summary, err := app.Summaries.UpdateSummaryForCommunity(ctx, params.CommunityID)
	if err != nil {
		if common.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, regenerateSummaryResponse{
				Message: "Community not found",
			})
		}
		if errors.Is(err, common.ErrMissingCredential) {
			return c.JSON(http.StatusServiceUnavailable, regenerateSummaryResponse{
				Message: "No AI credentials configured",
			})
		}
		logger.Error("Failed to regenerate community summary", "err", err)
		return c.JSON(http.StatusInternalServerError, regenerateSummaryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, regenerateSummaryResponse{
		Message: "Summary regenerated",
		Summary: summary,
	})
}
