package server

import (
	"github.com/fatecrafters/chronicle/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Changelog and world-state routes
	apiRoutes.POST("/campaigns/:id/changelog", routes.RecordChangelogHandler)
	apiRoutes.GET("/campaigns/:id/changelog", routes.GetChangelogHandler)
	apiRoutes.GET("/campaigns/:id/world-state", routes.GetWorldStateHandler)
	apiRoutes.GET("/campaigns/:id/history", routes.GetHistoricalSnapshotHandler)

	// Rebuild routes
	apiRoutes.POST("/campaigns/:id/rebuilds", routes.StartRebuildHandler)
	apiRoutes.GET("/campaigns/:id/rebuilds/latest", routes.GetLatestRebuildHandler)
	apiRoutes.GET("/rebuilds/:rebuild_id", routes.GetRebuildHandler)

	// Community routes
	apiRoutes.GET("/campaigns/:id/communities", routes.GetCommunitiesHandler)
	apiRoutes.GET("/communities/:community_id/summary", routes.GetCommunitySummaryHandler)
	apiRoutes.POST("/communities/:community_id/summary", routes.RegenerateSummaryHandler)

	// Importance routes
	apiRoutes.GET("/campaigns/:id/entities/:entity_id/importance", routes.GetEntityImportanceHandler)

	// Archive routes
	apiRoutes.POST("/campaigns/:id/archives", routes.ScheduleArchiveHandler)
	apiRoutes.GET("/campaigns/:id/archives/search", routes.SearchArchivesHandler)
	apiRoutes.GET("/campaigns/:id/archives/:archive_id/entries", routes.GetArchivedEntriesHandler)
}
