package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fatecrafters/chronicle/internal/queue"
	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// ScheduleArchiveHandler queues an archival run for a campaign. Entries
// older than before (or the worker default when omitted) are moved to
// cold storage.
func ScheduleArchiveHandler(c echo.Context) error {
	type scheduleArchiveRequest struct {
		CampaignID string    `param:"id" validate:"required"`
		Before     time.Time `json:"before"`
	}

	type scheduleArchiveResponse struct {
		Message string `json:"message"`
	}

	data := new(scheduleArchiveRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, scheduleArchiveResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, scheduleArchiveResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App

	body, err := json.Marshal(queue.ArchiveMsg{
		Message:    "Archive requested",
		CampaignID: data.CampaignID,
		Before:     data.Before,
	})
	if err != nil {
		logger.Error("Failed to marshal archive message", "err", err)
		return c.JSON(http.StatusInternalServerError, scheduleArchiveResponse{
			Message: "Internal server error",
		})
	}
	err = queue.PublishFIFO(app.Queue, queue.ArchiveQueue, body)
	if err != nil {
		logger.Error("Failed to publish to archive_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, scheduleArchiveResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, scheduleArchiveResponse{
		Message: "Archive queued",
	})
}
