package worldstate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"
)

// ErrEmptyPayload rejects changelog entries that change nothing.
var ErrEmptyPayload = errors.New("changelog payload carries no changes")

// RelationshipKey builds the overlay map key for a directed relationship.
func RelationshipKey(fromID, toID string) string {
	return fromID + "::" + toID
}

// ChangelogService records world-state changes and derives last-write-wins
// overlay snapshots from them. Entries are immutable once recorded; the
// overlay is computed on read and never persisted.
type ChangelogService struct {
	entries  store.ChangelogStore
	entities store.EntityStore
}

// NewChangelogService creates a ChangelogService.
func NewChangelogService(entries store.ChangelogStore, entities store.EntityStore) *ChangelogService {
	return &ChangelogService{entries: entries, entities: entities}
}

// RecordChangelog appends one entry to a campaign's changelog. The entry's
// impact score is derived from the payload before persistence. Timestamp is
// the in-world event time; a zero timestamp defaults to now.
func (s *ChangelogService) RecordChangelog(
	ctx context.Context,
	campaignID, sessionID string,
	timestamp time.Time,
	payload common.ChangelogPayload,
) (*common.ChangelogEntry, error) {
	if len(payload.EntityUpdates)+len(payload.RelationshipUpdates)+len(payload.NewEntities) == 0 {
		return nil, ErrEmptyPayload
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	entry := &common.ChangelogEntry{
		ID:          id,
		CampaignID:  campaignID,
		SessionID:   sessionID,
		Timestamp:   timestamp.UTC(),
		Payload:     payload,
		ImpactScore: ImpactScore(payload),
	}

	stored, err := s.entries.CreateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to record changelog entry: %w", err)
	}

	logger.Debug("[Changelog] Recorded",
		"campaign_id", campaignID,
		"entry_id", stored.ID,
		"impact", stored.ImpactScore,
	)
	return stored, nil
}

// ImpactScore scores a payload's magnitude on a 0-10 scale. New entities
// weigh more than state updates, relationship changes less.
func ImpactScore(payload common.ChangelogPayload) float64 {
	score := 2.0*float64(len(payload.NewEntities)) +
		1.0*float64(len(payload.EntityUpdates)) +
		0.5*float64(len(payload.RelationshipUpdates))
	return math.Min(10, score)
}

// GetOverlaySnapshot folds all entries recorded at or before the given
// time into a last-write-wins snapshot. A zero time means "all entries".
func (s *ChangelogService) GetOverlaySnapshot(ctx context.Context, campaignID string, at time.Time) (*common.OverlaySnapshot, error) {
	entries, err := s.entries.ListEntriesForCampaign(ctx, campaignID, store.ChangelogFilter{To: at})
	if err != nil {
		return nil, fmt.Errorf("failed to list changelog entries: %w", err)
	}
	return BuildOverlay(campaignID, entries), nil
}

// BuildOverlay folds changelog entries into an overlay snapshot. Entries
// are applied in in-world timestamp order; entries sharing a timestamp
// apply in creation order, so the later-created entry wins ties. The fold
// is pure.
func BuildOverlay(campaignID string, entries []common.ChangelogEntry) *common.OverlaySnapshot {
	ordered := append([]common.ChangelogEntry(nil), entries...)
	sort.SliceStable(ordered, func(a, b int) bool {
		if !ordered[a].Timestamp.Equal(ordered[b].Timestamp) {
			return ordered[a].Timestamp.Before(ordered[b].Timestamp)
		}
		return ordered[a].CreatedAt.Before(ordered[b].CreatedAt)
	})

	snapshot := &common.OverlaySnapshot{
		CampaignID:    campaignID,
		EntityState:   make(map[string]common.EntityState),
		Relationships: make(map[string]common.RelationshipState),
		NewEntities:   make(map[string]common.NewEntityState),
	}
	for _, entry := range ordered {
		for _, u := range entry.Payload.EntityUpdates {
			snapshot.EntityState[u.EntityID] = common.EntityState{
				Status:        u.Status,
				Description:   u.Description,
				Metadata:      u.Metadata,
				Timestamp:     entry.Timestamp,
				SourceEntryID: entry.ID,
			}
		}
		for _, u := range entry.Payload.RelationshipUpdates {
			snapshot.Relationships[RelationshipKey(u.FromID, u.ToID)] = common.RelationshipState{
				NewStatus:     u.NewStatus,
				Description:   u.Description,
				Metadata:      u.Metadata,
				Timestamp:     entry.Timestamp,
				SourceEntryID: entry.ID,
			}
		}
		for _, n := range entry.Payload.NewEntities {
			snapshot.NewEntities[n.EntityID] = common.NewEntityState{
				Name:          n.Name,
				Type:          n.Type,
				Description:   n.Description,
				Metadata:      n.Metadata,
				Timestamp:     entry.Timestamp,
				SourceEntryID: entry.ID,
			}
		}
	}
	return snapshot
}

// ApplyEntityOverlay attaches overlay state to matching entities and
// materializes changelog-introduced entities that have no persisted row
// yet. Input slices are not mutated.
func ApplyEntityOverlay(entities []common.Entity, snapshot *common.OverlaySnapshot) []common.Entity {
	out := make([]common.Entity, 0, len(entities)+len(snapshot.NewEntities))
	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		known[e.ID] = struct{}{}
		if state, ok := snapshot.EntityState[e.ID]; ok {
			st := state
			e.WorldState = &st
		}
		out = append(out, e)
	}

	ids := make([]string, 0, len(snapshot.NewEntities))
	for id := range snapshot.NewEntities {
		if _, exists := known[id]; !exists {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := snapshot.NewEntities[id]
		out = append(out, common.Entity{
			ID:         id,
			CampaignID: snapshot.CampaignID,
			Type:       n.Type,
			Name:       n.Name,
			Content:    n.Description,
			Metadata:   n.Metadata,
			WorldState: &common.EntityState{
				Status:        "new",
				Description:   n.Description,
				Metadata:      n.Metadata,
				Timestamp:     n.Timestamp,
				SourceEntryID: n.SourceEntryID,
			},
			CreatedAt: n.Timestamp,
			UpdatedAt: n.Timestamp,
		})
	}
	return out
}

// ApplyRelationshipOverlay attaches overlay state to matching
// relationships. Input slices are not mutated.
func ApplyRelationshipOverlay(relationships []common.Relationship, snapshot *common.OverlaySnapshot) []common.Relationship {
	out := make([]common.Relationship, 0, len(relationships))
	for _, r := range relationships {
		if state, ok := snapshot.Relationships[RelationshipKey(r.FromID, r.ToID)]; ok {
			st := state
			r.WorldState = &st
		}
		out = append(out, r)
	}
	return out
}

// GetWorldState returns the campaign's entities with the overlay applied
// as of the given time.
func (s *ChangelogService) GetWorldState(ctx context.Context, campaignID string, at time.Time) ([]common.Entity, error) {
	snapshot, err := s.GetOverlaySnapshot(ctx, campaignID, at)
	if err != nil {
		return nil, err
	}
	entities, err := s.entities.ListEntitiesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	sort.Slice(entities, func(a, b int) bool { return entities[a].ID < entities[b].ID })
	return ApplyEntityOverlay(entities, snapshot), nil
}

// ListEntries returns changelog entries matching the filter.
func (s *ChangelogService) ListEntries(ctx context.Context, campaignID string, filter store.ChangelogFilter) ([]common.ChangelogEntry, error) {
	return s.entries.ListEntriesForCampaign(ctx, campaignID, filter)
}

// MarkApplied flips the applied flag on the given entries. The transition
// is one-way.
func (s *ChangelogService) MarkApplied(ctx context.Context, campaignID string, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	return s.entries.MarkEntriesApplied(ctx, campaignID, entryIDs)
}
