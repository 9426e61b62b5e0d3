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

// GetCommunitiesHandler lists the detected community hierarchy for a
// campaign.
func GetCommunitiesHandler(c echo.Context) error {
	type getCommunitiesParams struct {
		CampaignID string `param:"id" validate:"required"`
	}

	type getCommunitiesResponse struct {
		Message     string             `json:"message"`
		Communities []common.Community `json:"communities"`
	}

	params := new(getCommunitiesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getCommunitiesResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getCommunitiesResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	communities, err := app.Store.ListCommunitiesByCampaign(ctx, params.CampaignID)
	if err != nil {
		logger.Error("Failed to list communities", "err", err)
		return c.JSON(http.StatusInternalServerError, getCommunitiesResponse{
			Message: "Internal server error",
		})
	}
	if communities == nil {
		communities = []common.Community{}
	}

	return c.JSON(http.StatusOK, getCommunitiesResponse{
		Message:     "Communities found",
		Communities: communities,
	})
}

// GetCommunitySummaryHandler returns the summary for a community,
// generating one on cache miss.
func GetCommunitySummaryHandler(c echo.Context) error {
	type getSummaryParams struct {
		CommunityID string `param:"community_id" validate:"required"`
	}

	type getSummaryResponse struct {
		Message string                   `json:"message"`
		Summary *common.CommunitySummary `json:"summary,omitempty"`
	}

	params := new(getSummaryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getSummaryResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getSummaryResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	summary, err := app.Summaries.GenerateOrGetSummary(ctx, params.CommunityID)
	if err != nil {
		if common.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, getSummaryResponse{
				Message: "Community not found",
			})
		}
		if errors.Is(err, common.ErrMissingCredential) {
			return c.JSON(http.StatusServiceUnavailable, getSummaryResponse{
				Message: "No AI credentials configured",
			})
		}
		logger.Error("Failed to generate community summary", "err", err)
		return c.JSON(http.StatusInternalServerError, getSummaryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getSummaryResponse{
		Message: "Summary found",
		Summary: summary,
	})
}
