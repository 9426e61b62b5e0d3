package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/worldstate"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RecordChangelogHandler appends one changelog entry to a campaign's
// world-state history.
func RecordChangelogHandler(c echo.Context) error {
	type recordChangelogRequest struct {
		CampaignID          string                      `param:"id" validate:"required"`
		SessionID           string                      `json:"campaign_session_id"`
		Timestamp           time.Time                   `json:"timestamp"`
		EntityUpdates       []common.EntityUpdate       `json:"entity_updates"`
		RelationshipUpdates []common.RelationshipUpdate `json:"relationship_updates"`
		NewEntities         []common.NewEntity          `json:"new_entities"`
	}

	type recordChangelogResponse struct {
		Message string                 `json:"message"`
		Entry   *common.ChangelogEntry `json:"entry,omitempty"`
	}

	data := new(recordChangelogRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, recordChangelogResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, recordChangelogResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	entry, err := app.Changelog.RecordChangelog(ctx, data.CampaignID, data.SessionID, data.Timestamp, common.ChangelogPayload{
		EntityUpdates:       data.EntityUpdates,
		RelationshipUpdates: data.RelationshipUpdates,
		NewEntities:         data.NewEntities,
	})
	if err != nil {
		if errors.Is(err, worldstate.ErrEmptyPayload) {
			return c.JSON(http.StatusBadRequest, recordChangelogResponse{
				Message: "Changelog payload must contain at least one change",
			})
		}
		logger.Error("Failed to record changelog entry", "err", err)
		return c.JSON(http.StatusInternalServerError, recordChangelogResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, recordChangelogResponse{
		Message: "Changelog entry recorded",
		Entry:   entry,
	})
}
