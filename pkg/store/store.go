package store

import (
	"context"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
)

// EntityStore provides read access to campaign entities and relationships,
// plus the single write path used by the metadata-embedded importance
// fallback.
type EntityStore interface {
	ListEntitiesByCampaign(ctx context.Context, campaignID string) ([]common.Entity, error)
	GetEntityByID(ctx context.Context, campaignID, entityID string) (*common.Entity, error)
	GetRelationshipsForEntity(ctx context.Context, campaignID, entityID string) ([]common.Relationship, error)
	GetMinimalEntitiesForCampaign(ctx context.Context, campaignID string) ([]common.EntityRef, error)
	GetMinimalRelationshipsForCampaign(ctx context.Context, campaignID string) ([]common.RelationshipRef, error)
	UpdateEntity(ctx context.Context, entity *common.Entity) error
}

// CommunityStore persists detected communities. Communities are recreated
// wholesale per campaign on each detection run.
type CommunityStore interface {
	DeleteCommunitiesByCampaign(ctx context.Context, campaignID string) error
	CreateCommunity(ctx context.Context, community *common.Community) error
	GetCommunityByID(ctx context.Context, communityID string) (*common.Community, error)
	ListCommunitiesByCampaign(ctx context.Context, campaignID string) ([]common.Community, error)
	FindCommunitiesContainingEntity(ctx context.Context, campaignID, entityID string) ([]common.Community, error)
	GetChildCommunities(ctx context.Context, communityID string) ([]common.Community, error)
}

// SummaryStore persists community summaries. At most one live summary
// exists per community.
type SummaryStore interface {
	GetSummaryByCommunityID(ctx context.Context, communityID string) (*common.CommunitySummary, error)
	CreateSummary(ctx context.Context, summary *common.CommunitySummary) error
	DeleteSummariesByCommunity(ctx context.Context, communityID string) error
	ListSummariesByCampaign(ctx context.Context, campaignID string) ([]common.CommunitySummary, error)
}

// ImportanceStore is the optional dedicated store for importance records.
// When nil, importance falls back to a metadata field embedded in the
// entity record.
type ImportanceStore interface {
	GetImportance(ctx context.Context, campaignID, entityID string) (*common.EntityImportance, error)
	UpsertImportance(ctx context.Context, record *common.EntityImportance) error
	UpsertImportanceBatch(ctx context.Context, records []common.EntityImportance) error
	GetImportanceForCampaign(ctx context.Context, campaignID string) ([]common.EntityImportance, error)
}

// ChangelogFilter bounds a changelog listing. Zero values mean "no bound";
// both time bounds are inclusive.
type ChangelogFilter struct {
	SessionID string
	From      time.Time
	To        time.Time
	Applied   *bool
	Limit     int
	Offset    int
}

// ChangelogStore persists the append-only world-state changelog. Entries
// are immutable once created; only the applied flag transitions, and only
// from false to true. DeleteEntries exists solely for the archiver, which
// removes live rows only after their cold copy is confirmed written.
type ChangelogStore interface {
	CreateEntry(ctx context.Context, entry *common.ChangelogEntry) (*common.ChangelogEntry, error)
	ListEntriesForCampaign(ctx context.Context, campaignID string, filter ChangelogFilter) ([]common.ChangelogEntry, error)
	MarkEntriesApplied(ctx context.Context, campaignID string, entryIDs []string) error
	DeleteEntries(ctx context.Context, campaignID string, entryIDs []string) error
}

// RebuildStore persists rebuild invocations as append-only history.
type RebuildStore interface {
	CreateRebuild(ctx context.Context, rebuild *common.Rebuild) error
	UpdateRebuildStatus(ctx context.Context, rebuildID string, status common.RebuildState, errMessage string) error
	GetRebuildByID(ctx context.Context, rebuildID string) (*common.Rebuild, error)
	GetLatestRebuildForCampaign(ctx context.Context, campaignID string) (*common.Rebuild, error)
}

// ArchiveStore persists changelog archive batch records and their
// embeddings for semantic search over archived history.
type ArchiveStore interface {
	CreateArchive(ctx context.Context, archive *common.ChangelogArchive, embedding []float32) error
	GetArchiveByID(ctx context.Context, archiveID string) (*common.ChangelogArchive, error)
	ListArchivesForCampaign(ctx context.Context, campaignID string, to time.Time) ([]common.ChangelogArchive, error)
	SearchArchives(ctx context.Context, campaignID string, embedding []float32, limit int) ([]common.ChangelogArchive, error)
}
