package routes

import (
	"net/http"
	"time"

	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetChangelogHandler lists a campaign's changelog entries, optionally
// bounded by session, time window, and applied state.
func GetChangelogHandler(c echo.Context) error {
	type getChangelogParams struct {
		CampaignID string    `param:"id" validate:"required"`
		SessionID  string    `query:"campaign_session_id"`
		From       time.Time `query:"from"`
		To         time.Time `query:"to"`
		Applied    *bool     `query:"applied"`
		Limit      int       `query:"limit"`
		Offset     int       `query:"offset"`
	}

	type getChangelogResponse struct {
		Message string                  `json:"message"`
		Entries []common.ChangelogEntry `json:"entries"`
	}

	params := new(getChangelogParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getChangelogResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getChangelogResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	entries, err := app.Changelog.ListEntries(ctx, params.CampaignID, store.ChangelogFilter{
		SessionID: params.SessionID,
		From:      params.From,
		To:        params.To,
		Applied:   params.Applied,
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		logger.Error("Failed to list changelog entries", "err", err)
		return c.JSON(http.StatusInternalServerError, getChangelogResponse{
			Message: "Internal server error",
		})
	}
	if entries == nil {
		entries = []common.ChangelogEntry{}
	}

	return c.JSON(http.StatusOK, getChangelogResponse{
		Message: "Changelog entries found",
		Entries: entries,
	})
}

// GetWorldStateHandler returns every campaign entity with its current (or
// as-of a point in time) world state attached.
func GetWorldStateHandler(c echo.Context) error {
	type getWorldStateParams struct {
		CampaignID string    `param:"id" validate:"required"`
		At         time.Time `query:"at"`
	}

	type getWorldStateResponse struct {
		Message  string          `json:"message"`
		Entities []common.Entity `json:"entities"`
	}

	params := new(getWorldStateParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getWorldStateResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getWorldStateResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	entities, err := app.Changelog.GetWorldState(ctx, params.CampaignID, params.At)
	if err != nil {
		logger.Error("Failed to build world state", "err", err)
		return c.JSON(http.StatusInternalServerError, getWorldStateResponse{
			Message: "Internal server error",
		})
	}
	if entities == nil {
		entities = []common.Entity{}
	}

	return c.JSON(http.StatusOK, getWorldStateResponse{
		Message:  "World state built",
		Entities: entities,
	})
}

// GetHistoricalSnapshotHandler reconstructs the overlay at a historical
// point in time, folding archived entries back in from cold storage.
func GetHistoricalSnapshotHandler(c echo.Context) error {
	type getHistoryParams struct {
		CampaignID string    `param:"id" validate:"required"`
		At         time.Time `query:"at" validate:"required"`
	}

	type getHistoryResponse struct {
		Message  string                  `json:"message"`
		Snapshot *common.OverlaySnapshot `json:"snapshot,omitempty"`
	}

	params := new(getHistoryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getHistoryResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getHistoryResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	snapshot, err := app.Archiver.HistoricalSnapshot(ctx, params.CampaignID, params.At)
	if err != nil {
		logger.Error("Failed to build historical snapshot", "err", err)
		return c.JSON(http.StatusInternalServerError, getHistoryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getHistoryResponse{
		Message:  "Historical snapshot built",
		Snapshot: snapshot,
	})
}
