package common

import "time"

// Entity represents a node in a campaign's knowledge graph. An entity can
// be an NPC, a location, an item, a player character, or any other concept
// the campaign tracks.
//
// WorldState is a read-time projection attached by the world-state overlay.
// It is never written back to entity storage.
type Entity struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaign_id"`
	Type       string         `json:"entity_type"`
	Name       string         `json:"name"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	WorldState *EntityState   `json:"world_state,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Entity types used across the campaign graph.
const (
	EntityTypeNPC      = "npc"
	EntityTypeLocation = "location"
	EntityTypeItem     = "item"
	EntityTypePC       = "pc"
	EntityTypeFaction  = "faction"
	EntityTypeEvent    = "event"
)

// Relationship represents a directed edge between two entities.
// Strength feeds graph weighting during community detection and
// importance scoring.
type Relationship struct {
	ID         string             `json:"id"`
	CampaignID string             `json:"campaign_id"`
	FromID     string             `json:"from_entity_id"`
	ToID       string             `json:"to_entity_id"`
	Type       string             `json:"relationship_type"`
	Strength   float64            `json:"strength"`
	WorldState *RelationshipState `json:"world_state,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// EntityRef is a minimal entity projection used by batch graph computations
// that do not need content or metadata.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"entity_type"`
}

// RelationshipRef is a minimal relationship projection carrying only what
// graph algorithms consume.
type RelationshipRef struct {
	FromID   string  `json:"from_entity_id"`
	ToID     string  `json:"to_entity_id"`
	Strength float64 `json:"strength"`
}

// Community is a cluster of entities produced by graph partitioning.
// Level 0 communities are leaves; higher levels are coarser aggregates.
// ParentID links a community to its aggregate at the next level, forming
// a tree. Communities are recreated wholesale on each detection run and
// carry no stable identity across rebuilds.
type Community struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Level      int       `json:"level"`
	ParentID   string    `json:"parent_community_id,omitempty"`
	EntityIDs  []string  `json:"entity_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommunitySummary is the natural-language summary generated for a single
// community. There is at most one live summary per community; regeneration
// deletes and recreates it.
type CommunitySummary struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Level       int       `json:"level"`
	Summary     string    `json:"summary"`
	KeyEntities []string  `json:"key_entities"`
	GeneratedAt time.Time `json:"generated_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityImportance holds the centrality signals and the composite
// importance score for one entity. Score is always within [0,100].
type EntityImportance struct {
	EntityID       string    `json:"entity_id"`
	CampaignID     string    `json:"campaign_id"`
	PageRank       float64   `json:"pagerank"`
	Betweenness    float64   `json:"betweenness_centrality"`
	HierarchyLevel int       `json:"hierarchy_level"`
	Score          float64   `json:"importance_score"`
	ComputedAt     time.Time `json:"computed_at"`
}

// ImportanceMetadataKey is the entity metadata field used as the embedded
// fallback store when no dedicated importance store is configured. Exactly
// one of the two is authoritative per deployment.
const ImportanceMetadataKey = "importance_score"

// EntityUpdate describes a change to an existing entity's world state.
type EntityUpdate struct {
	EntityID    string         `json:"entity_id"`
	Status      string         `json:"status"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RelationshipUpdate describes a change to the state of a directed
// relationship between two entities.
type RelationshipUpdate struct {
	FromID      string         `json:"from_entity_id"`
	ToID        string         `json:"to_entity_id"`
	NewStatus   string         `json:"new_status"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewEntity describes an entity introduced by a changelog entry before it
// exists as a persisted row.
type NewEntity struct {
	EntityID    string         `json:"entity_id"`
	Name        string         `json:"name"`
	Type        string         `json:"entity_type"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ChangelogPayload is the delta carried by one changelog entry.
type ChangelogPayload struct {
	EntityUpdates       []EntityUpdate       `json:"entity_updates"`
	RelationshipUpdates []RelationshipUpdate `json:"relationship_updates"`
	NewEntities         []NewEntity          `json:"new_entities"`
}

// ChangelogEntry is one immutable record in the world-state changelog.
// Timestamp is the in-world event time and is distinct from CreatedAt.
// Once persisted, only AppliedToGraph ever transitions, and only from
// false to true.
type ChangelogEntry struct {
	ID             string           `json:"id"`
	CampaignID     string           `json:"campaign_id"`
	SessionID      string           `json:"campaign_session_id,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Payload        ChangelogPayload `json:"payload"`
	ImpactScore    float64          `json:"impact_score"`
	AppliedToGraph bool             `json:"applied_to_graph"`
	CreatedAt      time.Time        `json:"created_at"`
}

// EntityState is the latest-wins world state of one entity inside an
// overlay snapshot. SourceEntryID records which changelog entry produced
// the value, for audit.
type EntityState struct {
	Status        string         `json:"status"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	SourceEntryID string         `json:"source_entry_id"`
}

// RelationshipState is the latest-wins world state of one relationship
// inside an overlay snapshot, keyed by "fromID::toID".
type RelationshipState struct {
	NewStatus     string         `json:"new_status"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	SourceEntryID string         `json:"source_entry_id"`
}

// NewEntityState is the latest-wins record of an entity introduced through
// the changelog.
type NewEntityState struct {
	Name          string         `json:"name"`
	Type          string         `json:"entity_type"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	SourceEntryID string         `json:"source_entry_id"`
}

// OverlaySnapshot is the derived, last-write-wins projection of changelog
// entries at or before a point in time. It is never persisted.
type OverlaySnapshot struct {
	CampaignID    string                       `json:"campaign_id"`
	EntityState   map[string]EntityState       `json:"entity_state"`
	Relationships map[string]RelationshipState `json:"relationship_state"`
	NewEntities   map[string]NewEntityState    `json:"new_entities"`
}

// ChangelogArchive is one cold-storage batch of archived changelog entries.
// StorageKey points at the compressed batch object; the embedding stored
// alongside enables semantic search over archived history.
type ChangelogArchive struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	SessionID  string    `json:"campaign_session_id,omitempty"`
	FromTime   time.Time `json:"from_time"`
	ToTime     time.Time `json:"to_time"`
	EntryCount int       `json:"entry_count"`
	StorageKey string    `json:"storage_key"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
}

// RebuildMode selects between a full rebuild and an incremental one.
type RebuildMode string

const (
	RebuildModeFull        RebuildMode = "full"
	RebuildModeIncremental RebuildMode = "incremental"
)

// RebuildState is the lifecycle state of one rebuild invocation.
// Transitions are pending → running → succeeded|failed; terminal states
// are final and a failed rebuild requires a new invocation.
type RebuildState string

const (
	RebuildPending   RebuildState = "pending"
	RebuildRunning   RebuildState = "running"
	RebuildSucceeded RebuildState = "succeeded"
	RebuildFailed    RebuildState = "failed"
)

// Rebuild is one rebuild invocation. Rows are append-only history and are
// never deleted.
type Rebuild struct {
	ID         string       `json:"id"`
	CampaignID string       `json:"campaign_id"`
	Mode       RebuildMode  `json:"mode"`
	Status     RebuildState `json:"status"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
