package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func summaryFixture(t *testing.T) (*memEntityStore, *memCommunityStore, *memSummaryStore, *fakeAIClient, *SummaryService) {
	t.Helper()
	entities := newMemEntityStore()
	communities := &memCommunityStore{}
	summaries := newMemSummaryStore()
	client := &fakeAIClient{hasCredentials: true}
	svc := NewSummaryService(entities, communities, summaries, client)
	return entities, communities, summaries, client, svc
}

func TestGenerateOrGetSummaryReturnsCached(t *testing.T) {
	_, _, summaries, client, svc := summaryFixture(t)

	summaries.summaries["c1"] = &common.CommunitySummary{
		ID:          "s1",
		CommunityID: "c1",
		Summary:     "cached",
		GeneratedAt: time.Now().UTC(),
	}

	got, err := svc.GenerateOrGetSummary(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "cached" {
		t.Errorf("got %q, want cached summary", got.Summary)
	}
	if client.calls != 0 {
		t.Errorf("AI called %d times on cache hit, want 0", client.calls)
	}
}

func TestGenerateOrGetSummaryGeneratesAndPersists(t *testing.T) {
	entities, communities, summaries, client, svc := summaryFixture(t)

	entities.addEntity("e1", "Captain Reva")
	entities.addEntity("e2", "The Gull")
	entities.addRelationship("r1", "e1", "e2", 2)
	communities.communities = append(communities.communities, common.Community{
		ID: "c1", CampaignID: "camp", Level: 0, EntityIDs: []string{"e1", "e2"},
	})
	client.formatFn = func(out any) error {
		o := out.(*communitySummaryOutput)
		o.Summary = "Captain Reva sails The Gull."
		o.KeyEntities = []string{"Captain Reva", "The Gull", "Made Up Person"}
		return nil
	}

	got, err := svc.GenerateOrGetSummary(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "Captain Reva sails The Gull." {
		t.Errorf("got summary %q", got.Summary)
	}
	for _, name := range got.KeyEntities {
		if name == "Made Up Person" {
			t.Error("hallucinated key entity survived filtering")
		}
	}
	if summaries.creates != 1 {
		t.Errorf("summary persisted %d times, want 1", summaries.creates)
	}
	if got.Level != 0 || got.CommunityID != "c1" {
		t.Errorf("summary carries wrong community linkage: %+v", got)
	}

	// the second call must come from cache
	before := client.calls
	if _, err := svc.GenerateOrGetSummary(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != before {
		t.Error("cache miss on second lookup")
	}
}

func TestGenerateSummaryMissingCredentials(t *testing.T) {
	_, _, _, client, svc := summaryFixture(t)
	client.hasCredentials = false

	_, err := svc.GenerateSummary(context.Background(), &common.Community{ID: "c1"})
	if !errors.Is(err, common.ErrMissingCredential) {
		t.Errorf("got %v, want ErrMissingCredential", err)
	}
}

func TestGenerateSummaryFallsBackOnAIError(t *testing.T) {
	entities, _, _, client, svc := summaryFixture(t)

	entities.addEntity("e1", "Varis")
	entities.addEntity("e2", "Moth")
	client.completionErr = errors.New("model unavailable")

	got, err := svc.GenerateSummary(context.Background(), &common.Community{
		ID: "c1", CampaignID: "camp", EntityIDs: []string{"e1", "e2"},
	})
	if err != nil {
		t.Fatalf("fallback should absorb generation errors, got %v", err)
	}
	if !strings.Contains(got.Summary, "Varis") || !strings.Contains(got.Summary, "Moth") {
		t.Errorf("fallback summary %q does not mention member names", got.Summary)
	}
}

func TestGenerateSummarySkipsUnloadableEntities(t *testing.T) {
	entities, _, _, client, svc := summaryFixture(t)

	entities.addEntity("e1", "Varis")
	entities.failIDs["e2"] = struct{}{}
	client.formatFn = func(out any) error {
		o := out.(*communitySummaryOutput)
		o.Summary = "Only Varis remains."
		o.KeyEntities = []string{"Varis"}
		return nil
	}

	got, err := svc.GenerateSummary(context.Background(), &common.Community{
		ID: "c1", CampaignID: "camp", EntityIDs: []string{"e1", "e2"},
	})
	if err != nil {
		t.Fatalf("one unloadable entity must not fail the summary: %v", err)
	}
	if got.Summary == "" {
		t.Error("empty summary")
	}
}

func TestGenerateSummariesForCommunitiesPartialFailure(t *testing.T) {
	entities, communities, summaries, client, svc := summaryFixture(t)

	entities.addEntity("e1", "Varis")
	entities.addEntity("e2", "Moth")
	entities.failIDs["ghost"] = struct{}{}
	communities.communities = []common.Community{
		{ID: "good", CampaignID: "camp", EntityIDs: []string{"e1", "e2"}},
		{ID: "bad", CampaignID: "camp", EntityIDs: []string{"ghost"}},
	}
	client.formatFn = func(out any) error {
		o := out.(*communitySummaryOutput)
		o.Summary = "Varis and Moth travel together."
		return nil
	}

	got, err := svc.GenerateSummariesForCommunities(context.Background(), "camp")
	if err != nil {
		t.Fatalf("partial failure must not abort the batch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d summaries, want 1", len(got))
	}
	if got[0].CommunityID != "good" {
		t.Errorf("got summary for %q, want the loadable community", got[0].CommunityID)
	}
	if summaries.creates != 1 {
		t.Errorf("persisted %d summaries, want 1", summaries.creates)
	}
}

func TestUpdateSummaryForCommunityRegenerates(t *testing.T) {
	entities, communities, summaries, client, svc := summaryFixture(t)

	entities.addEntity("e1", "Varis")
	entities.addEntity("e2", "Moth")
	communities.communities = []common.Community{
		{ID: "c1", CampaignID: "camp", EntityIDs: []string{"e1", "e2"}},
	}
	summaries.summaries["c1"] = &common.CommunitySummary{ID: "old", CommunityID: "c1", Summary: "stale"}
	client.formatFn = func(out any) error {
		o := out.(*communitySummaryOutput)
		o.Summary = "fresh"
		return nil
	}

	got, err := svc.UpdateSummaryForCommunity(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "fresh" {
		t.Errorf("got %q, want regenerated summary", got.Summary)
	}
}

func TestTruncateToTokensPreservesLines(t *testing.T) {
	text := strings.Repeat("- some entity line with details\n", 100)
	out := truncateToTokens(text, 50)
	if out == text {
		t.Error("expected truncation")
	}
	if out != "" && !strings.HasSuffix(out, "\n") {
		t.Errorf("truncated output ends mid-line: %q", out[len(out)-20:])
	}
	if countTokens(out) > 50 {
		t.Errorf("truncated output has %d tokens, budget 50", countTokens(out))
	}
}
