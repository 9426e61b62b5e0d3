package graph

import (
	"context"
	"testing"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func TestGetEntityImportancePrefersStoreRecord(t *testing.T) {
	entities := newMemEntityStore()
	importance := newMemImportanceStore()
	svc := NewImportanceService(entities, &memCommunityStore{}, importance)

	entities.addEntity("hero", "Hero")
	importance.records["hero"] = &common.EntityImportance{
		EntityID: "hero", CampaignID: "camp", Score: 73.5,
	}
	// a conflicting metadata value must be ignored when a record exists
	entities.entities["hero"].Metadata = map[string]any{common.ImportanceMetadataKey: 12.0}

	got, err := svc.GetEntityImportance(context.Background(), "camp", "hero", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 73.5 {
		t.Errorf("got %v, want 73.5 from the dedicated store", got)
	}
}

func TestGetEntityImportanceMetadataFallback(t *testing.T) {
	entities := newMemEntityStore()
	svc := NewImportanceService(entities, &memCommunityStore{}, nil)

	entities.addEntity("hero", "Hero")
	entities.entities["hero"].Metadata = map[string]any{common.ImportanceMetadataKey: 42.0}

	got, err := svc.GetEntityImportance(context.Background(), "camp", "hero", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42.0 {
		t.Errorf("got %v, want 42 from metadata", got)
	}
}

func TestGetEntityImportanceComputesForIsolatedEntity(t *testing.T) {
	entities := newMemEntityStore()
	svc := NewImportanceService(entities, &memCommunityStore{}, nil)

	entities.addEntity("loner", "Loner")

	got, err := svc.GetEntityImportance(context.Background(), "camp", "loner", false)
	if err != nil {
		t.Fatalf("isolated entity must score, not error: %v", err)
	}
	if got < 0 || got > 100 {
		t.Errorf("score %v outside [0,100]", got)
	}
}

func TestGetEntityImportancePersistsComputedScore(t *testing.T) {
	entities := newMemEntityStore()
	svc := NewImportanceService(entities, &memCommunityStore{}, nil)

	entities.addEntity("hero", "Hero")
	entities.addEntity("ally", "Ally")
	entities.addRelationship("r1", "hero", "ally", 3)

	got, err := svc.GetEntityImportance(context.Background(), "camp", "hero", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, ok := entities.entities["hero"].Metadata[common.ImportanceMetadataKey].(float64)
	if !ok {
		t.Fatal("computed score not written to entity metadata")
	}
	if stored != got {
		t.Errorf("persisted %v, returned %v", stored, got)
	}
}

func TestGetEntityImportanceUnknownEntity(t *testing.T) {
	svc := NewImportanceService(newMemEntityStore(), &memCommunityStore{}, nil)

	_, err := svc.GetEntityImportance(context.Background(), "camp", "ghost", false)
	if !common.IsNotFound(err) {
		t.Errorf("got %v, want not-found error", err)
	}
}

func TestRecalculateForCampaignRanksHubHighest(t *testing.T) {
	entities := newMemEntityStore()
	importance := newMemImportanceStore()
	svc := NewImportanceService(entities, &memCommunityStore{}, importance)

	// star graph: hub connects to four spokes
	entities.addEntity("hub", "Hub")
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		entities.addEntity(id, id)
		entities.addRelationship("r-"+id, "hub", id, 1)
	}

	scores, err := svc.RecalculateForCampaign(context.Background(), "camp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("got %d scores, want 5", len(scores))
	}
	for id, s := range scores {
		if s < 0 || s > 100 {
			t.Errorf("score for %s is %v, outside [0,100]", id, s)
		}
		if id != "hub" && scores["hub"] <= s {
			t.Errorf("hub score %v not above spoke %s score %v", scores["hub"], id, s)
		}
	}
	if importance.batches != 1 {
		t.Errorf("got %d batch upserts, want 1", importance.batches)
	}
	if len(importance.records) != 5 {
		t.Errorf("got %d persisted records, want 5", len(importance.records))
	}
}

func TestRecalculateForCampaignMetadataFallback(t *testing.T) {
	entities := newMemEntityStore()
	svc := NewImportanceService(entities, &memCommunityStore{}, nil)

	entities.addEntity("a", "A")
	entities.addEntity("b", "B")
	entities.addRelationship("r1", "a", "b", 2)

	scores, err := svc.RecalculateForCampaign(context.Background(), "camp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for id, want := range scores {
		got, ok := entities.entities[id].Metadata[common.ImportanceMetadataKey].(float64)
		if !ok || got != want {
			t.Errorf("entity %s metadata score %v (present=%v), want %v", id, got, ok, want)
		}
	}
}

func TestRecalculateForCampaignCommunityDepthBonus(t *testing.T) {
	entities := newMemEntityStore()
	importance := newMemImportanceStore()
	communities := &memCommunityStore{communities: []common.Community{
		{ID: "c1", CampaignID: "camp", Level: 1, EntityIDs: []string{"a"}},
	}}
	svc := NewImportanceService(entities, communities, importance)

	// symmetric pair, so only community membership separates them
	entities.addEntity("a", "A")
	entities.addEntity("b", "B")
	entities.addRelationship("r1", "a", "b", 1)

	scores, err := svc.RecalculateForCampaign(context.Background(), "camp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["a"] <= scores["b"] {
		t.Errorf("community member score %v not above non-member %v", scores["a"], scores["b"])
	}
}

func TestRecalculateForCampaignEmpty(t *testing.T) {
	svc := NewImportanceService(newMemEntityStore(), &memCommunityStore{}, newMemImportanceStore())

	scores, err := svc.RecalculateForCampaign(context.Background(), "camp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("got %d scores for empty campaign, want 0", len(scores))
	}
}

func TestBetweennessCentralityPathGraph(t *testing.T) {
	// a - b - c: all shortest paths between a and c pass through b
	adj := [][]int{{1}, {0, 2}, {1}}
	cb := betweennessCentrality(adj)
	if cb[1] <= cb[0] || cb[1] <= cb[2] {
		t.Errorf("middle node betweenness %v not above endpoints %v, %v", cb[1], cb[0], cb[2])
	}
	if cb[0] != 0 || cb[2] != 0 {
		t.Errorf("endpoints should have zero betweenness, got %v and %v", cb[0], cb[2])
	}
}
