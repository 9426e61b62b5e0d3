package routes

import (
	"net/http"

	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

func GetRebuildHandler(c echo.Context) error {
	type getRebuildParams struct {
		RebuildID string `param:"rebuild_id" validate:"required"`
	}

	type getRebuildResponse struct {
		Message string          `json:"message"`
		Rebuild *common.Rebuild `json:"rebuild,omitempty"`
	}

	params := new(getRebuildParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getRebuildResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getRebuildResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	invocation, err := app.Rebuilds.GetRebuild(ctx, params.RebuildID)
	if err != nil {
		if common.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, getRebuildResponse{
				Message: "Rebuild not found",
			})
		}
		logger.Error("Failed to load rebuild", "err", err)
		return c.JSON(http.StatusInternalServerError, getRebuildResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getRebuildResponse{
		Message: "Rebuild found",
		Rebuild: invocation,
	})
}

func GetLatestRebuildHandler(c echo.Context) error {
	type getLatestRebuildParams struct {
		CampaignID string `param:"id" validate:"required"`
	}

	type getLatestRebuildResponse struct {
		Message string          `json:"message"`
		Rebuild *common.Rebuild `json:"rebuild,omitempty"`
	}

	params := new(getLatestRebuildParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getLatestRebuildResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getLatestRebuildResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	invocation, err := app.Rebuilds.GetLatestRebuild(ctx, params.CampaignID)
	if err != nil {
		if common.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, getLatestRebuildResponse{
				Message: "No rebuilds for this campaign",
			})
		}
		logger.Error("Failed to load latest rebuild", "err", err)
		return c.JSON(http.StatusInternalServerError, getLatestRebuildResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getLatestRebuildResponse{
		Message: "Rebuild found",
		Rebuild: invocation,
	})
}
