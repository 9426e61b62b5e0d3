package routes

import (
	"net/http"

	"github.com/fatecrafters/chronicle/internal/server/middleware"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// SearchArchivesHandler runs a semantic search over a campaign's archived
// changelog batches.
func SearchArchivesHandler(c echo.Context) error {
	type searchArchivesParams struct {
		CampaignID string `param:"id" validate:"required"`
		Query      string `query:"q" validate:"required"`
		Limit      int    `query:"limit"`
	}

	type searchArchivesResponse struct {
		Message  string                    `json:"message"`
		Archives []common.ChangelogArchive `json:"archives"`
	}

	params := new(searchArchivesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, searchArchivesResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, searchArchivesResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	archives, err := app.Archiver.SearchArchivedChangelogs(ctx, params.CampaignID, params.Query, params.Limit)
	if err != nil {
		logger.Error("Failed to search archives", "err", err)
		return c.JSON(http.StatusInternalServerError, searchArchivesResponse{
			Message: "Internal server error",
		})
	}
	if archives == nil {
		archives = []common.ChangelogArchive{}
	}

	return c.JSON(http.StatusOK, searchArchivesResponse{
		Message:  "Archives found",
		Archives: archives,
	})
}

// GetArchivedEntriesHandler pulls one archived batch back out of cold
// storage and returns its decompressed entries.
func GetArchivedEntriesHandler(c echo.Context) error {
	type getArchivedEntriesParams struct {
		CampaignID string `param:"id" validate:"required"`
		ArchiveID  string `param:"archive_id" validate:"required"`
	}

	type getArchivedEntriesResponse struct {
		Message string                   `json:"message"`
		Archive *common.ChangelogArchive `json:"archive,omitempty"`
		Entries []common.ChangelogEntry  `json:"entries,omitempty"`
	}

	params := new(getArchivedEntriesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getArchivedEntriesResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getArchivedEntriesResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	archive, err := app.Store.GetArchiveByID(ctx, params.ArchiveID)
	if err != nil {
		if common.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, getArchivedEntriesResponse{
				Message: "Archive not found",
			})
		}
		logger.Error("Failed to load archive", "err", err)
		return c.JSON(http.StatusInternalServerError, getArchivedEntriesResponse{
			Message: "Internal server error",
		})
	}
	if archive.CampaignID != params.CampaignID {
		return c.JSON(http.StatusNotFound, getArchivedEntriesResponse{
			Message: "Archive not found",
		})
	}

	entries, err := app.Archiver.RetrieveArchivedEntries(ctx, archive)
	if err != nil {
		logger.Error("Failed to retrieve archived entries", "err", err)
		return c.JSON(http.StatusInternalServerError, getArchivedEntriesResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getArchivedEntriesResponse{
		Message: "Archived entries retrieved",
		Archive: archive,
		Entries: entries,
	})
}
