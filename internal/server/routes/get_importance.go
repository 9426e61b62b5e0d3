package routes

import (
	"net/http"

	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetEntityImportanceHandler resolves one entity's importance score.
// persist=true writes a freshly computed score back to storage.
func GetEntityImportanceHandler(c echo.Context) error {
	type getImportanceParams struct {
		CampaignID string `param:"id" validate:"required"`
		EntityID   string `param:"entity_id" validate:"required"`
		Persist    bool   `query:"persist"`
	}

	type getImportanceResponse struct {
		Message  string  `json:"message"`
		EntityID string  `json:"entity_id,omitempty"`
		Score    float64 `json:"importance_score"`
	}

	params := new(getImportanceParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getImportanceResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getImportanceResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	score, err := app.Importance.GetEntityImportance(ctx, params.CampaignID, params.EntityID, params.Persist)
	if err != nil {
		if common.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, getImportanceResponse{
				Message: "Entity not found",
			})
		}
		logger.Error("Failed to resolve entity importance", "err", err)
		return c.JSON(http.StatusInternalServerError, getImportanceResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getImportanceResponse{
		Message:  "Importance resolved",
		EntityID: params.EntityID,
		Score:    score,
	})
}
