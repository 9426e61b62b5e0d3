package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fatecrafters/chronicle/internal/queue"
	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/rebuild"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// StartRebuildHandler records a pending rebuild and hands execution to
// the worker.
func StartRebuildHandler(c echo.Context) error {
	type startRebuildRequest struct {
		CampaignID string `param:"id" validate:"required"`
		Mode       string `json:"mode" validate:"required,oneof=full incremental"`
	}

	type startRebuildResponse struct {
		Message string          `json:"message"`
		Rebuild *common.Rebuild `json:"rebuild,omitempty"`
	}

	data := new(startRebuildRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, startRebuildResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, startRebuildResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	invocation, err := app.Rebuilds.StartRebuild(ctx, data.CampaignID, common.RebuildMode(data.Mode))
	if err != nil {
		if errors.Is(err, rebuild.ErrRebuildInProgress) {
			return c.JSON(http.StatusConflict, startRebuildResponse{
				Message: "A rebuild is already in progress for this campaign",
			})
		}
		logger.Error("Failed to start rebuild", "err", err)
		return c.JSON(http.StatusInternalServerError, startRebuildResponse{
			Message: "Internal server error",
		})
	}

	body, err := json.Marshal(queue.RebuildMsg{
		Message:    "Rebuild requested",
		RebuildID:  invocation.ID,
		CampaignID: invocation.CampaignID,
	})
	if err != nil {
		logger.Error("Failed to marshal rebuild message", "err", err)
		return c.JSON(http.StatusInternalServerError, startRebuildResponse{
			Message: "Internal server error",
		})
	}
	err = queue.PublishFIFO(app.Queue, queue.RebuildQueue, body)
	if err != nil {
		logger.Error("Failed to publish to rebuild_queue", "err", err)
	}

	return c.JSON(http.StatusOK, startRebuildResponse{
		Message: "Rebuild queued",
		Rebuild: invocation,
	})
}
