package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"

	"github.com/fatecrafters/chronicle/pkg/ai"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"
)

const (
	// summaryPromptTokenBudget caps the entity/relationship context placed
	// into one summarization prompt.
	summaryPromptTokenBudget = 8000
	entityLoadConcurrency    = 8
)

type communitySummaryOutput struct {
	Summary     string   `json:"summary" jsonschema_description:"Narrative summary of the entity group"`
	KeyEntities []string `json:"key_entities" jsonschema_description:"Entity names most central to the group, most central first"`
}

// SummaryService generates and caches natural-language summaries for
// detected communities.
type SummaryService struct {
	entities    store.EntityStore
	communities store.CommunityStore
	summaries   store.SummaryStore
	aiClient    ai.SummaryAIClient
}

// NewSummaryService creates a SummaryService.
func NewSummaryService(
	entities store.EntityStore,
	communities store.CommunityStore,
	summaries store.SummaryStore,
	aiClient ai.SummaryAIClient,
) *SummaryService {
	return &SummaryService{
		entities:    entities,
		communities: communities,
		summaries:   summaries,
		aiClient:    aiClient,
	}
}

// GenerateOrGetSummary returns the cached summary for a community, or
// generates, persists, and returns a new one on cache miss.
func (s *SummaryService) GenerateOrGetSummary(ctx context.Context, communityID string) (*common.CommunitySummary, error) {
	cached, err := s.summaries.GetSummaryByCommunityID(ctx, communityID)
	if err != nil && !common.IsNotFound(err) {
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	community, err := s.communities.GetCommunityByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, common.NewNotFound("community", communityID)
	}

	summary, err := s.GenerateSummary(ctx, community)
	if err != nil {
		return nil, err
	}
	if err := s.summaries.CreateSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to persist summary: %w", err)
	}
	return summary, nil
}

// GenerateSummary produces a summary for one community without touching
// the cache. Without AI credentials it fails fast with
// common.ErrMissingCredential; on a generation failure it degrades to a
// deterministic summary built from member names so downstream consumers
// always have something to show.
func (s *SummaryService) GenerateSummary(ctx context.Context, community *common.Community) (*common.CommunitySummary, error) {
	if !s.aiClient.HasCredentials() {
		return nil, common.ErrMissingCredential
	}

	members := s.loadMembers(ctx, community)
	if len(members) == 0 {
		return nil, fmt.Errorf("community %s has no loadable entities", community.ID)
	}
	relations := s.loadMemberRelationships(ctx, community.CampaignID, members)

	prompt := buildSummaryPrompt(members, relations)

	var out communitySummaryOutput
	err := s.aiClient.GenerateCompletionWithFormat(
		ctx,
		"community_summary",
		"Narrative summary of a group of related campaign entities",
		prompt,
		&out,
		ai.WithTemperature(0.2),
	)
	if err != nil {
		if errors.Is(err, common.ErrMissingCredential) {
			return nil, err
		}
		logger.Warn("[Summaries] Generation failed, using fallback",
			"community_id", community.ID,
			"err", err,
		)
		out = fallbackSummaryOutput(members)
	}

	out.KeyEntities = keepKnownNames(out.KeyEntities, members)
	if strings.TrimSpace(out.Summary) == "" {
		out = fallbackSummaryOutput(members)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &common.CommunitySummary{
		ID:          id,
		CommunityID: community.ID,
		Level:       community.Level,
		Summary:     strings.TrimSpace(out.Summary),
		KeyEntities: out.KeyEntities,
		GeneratedAt: now,
		UpdatedAt:   now,
	}, nil
}

// GenerateSummariesForCommunities generates and persists summaries for
// every community of a campaign that does not have one yet. Individual
// community failures are logged and skipped; the returned slice holds
// every summary that was persisted. Missing credentials abort the whole
// run up front.
func (s *SummaryService) GenerateSummariesForCommunities(ctx context.Context, campaignID string) ([]common.CommunitySummary, error) {
	if !s.aiClient.HasCredentials() {
		return nil, common.ErrMissingCredential
	}

	communities, err := s.communities.ListCommunitiesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}

	logger.Info("[Summaries] Generating", "campaign_id", campaignID, "communities", len(communities))

	var out []common.CommunitySummary
	for i := range communities {
		summary, err := s.GenerateOrGetSummary(ctx, communities[i].ID)
		if err != nil {
			if errors.Is(err, common.ErrMissingCredential) {
				return out, err
			}
			logger.Error("[Summaries] Skipping community",
				"community_id", communities[i].ID,
				"err", err,
			)
			continue
		}
		out = append(out, *summary)
	}

	logger.Info("[Summaries] Done",
		"campaign_id", campaignID,
		"generated", len(out),
		"failed", len(communities)-len(out),
	)
	return out, nil
}

// UpdateSummaryForCommunity drops the cached summary and regenerates it.
func (s *SummaryService) UpdateSummaryForCommunity(ctx context.Context, communityID string) (*common.CommunitySummary, error) {
	if err := s.summaries.DeleteSummariesByCommunity(ctx, communityID); err != nil {
		return nil, fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return s.GenerateOrGetSummary(ctx, communityID)
}

// loadMembers fetches the community's entities concurrently. Entities
// that fail to load are skipped so one bad row cannot block the summary.
func (s *SummaryService) loadMembers(ctx context.Context, community *common.Community) []common.Entity {
	var (
		mu      sync.Mutex
		members []common.Entity
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(entityLoadConcurrency)
	for _, entityID := range community.EntityIDs {
		eg.Go(func() error {
			entity, err := s.entities.GetEntityByID(egCtx, community.CampaignID, entityID)
			if err != nil || entity == nil {
				logger.Warn("[Summaries] Skipping unloadable entity",
					"community_id", community.ID,
					"entity_id", entityID,
					"err", err,
				)
				return nil
			}
			mu.Lock()
			members = append(members, *entity)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(members, func(a, b int) bool { return members[a].ID < members[b].ID })
	return members
}

// loadMemberRelationships collects the relationships whose both endpoints
// are community members, deduplicated by id.
func (s *SummaryService) loadMemberRelationships(ctx context.Context, campaignID string, members []common.Entity) []common.Relationship {
	inCommunity := make(map[string]string, len(members))
	for _, m := range members {
		inCommunity[m.ID] = m.Name
	}

	seen := make(map[string]struct{})
	var relations []common.Relationship
	for _, m := range members {
		rels, err := s.entities.GetRelationshipsForEntity(ctx, campaignID, m.ID)
		if err != nil {
			logger.Warn("[Summaries] Skipping relationships for entity", "entity_id", m.ID, "err", err)
			continue
		}
		for _, r := range rels {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			if _, ok := inCommunity[r.FromID]; !ok {
				continue
			}
			if _, ok := inCommunity[r.ToID]; !ok {
				continue
			}
			seen[r.ID] = struct{}{}
			relations = append(relations, r)
		}
	}
	sort.Slice(relations, func(a, b int) bool { return relations[a].ID < relations[b].ID })
	return relations
}

func buildSummaryPrompt(members []common.Entity, relations []common.Relationship) string {
	nameOf := make(map[string]string, len(members))
	for _, m := range members {
		nameOf[m.ID] = m.Name
	}

	var entityBlock strings.Builder
	for _, m := range members {
		fmt.Fprintf(&entityBlock, "- %s (%s): %s\n", m.Name, m.Type, m.Content)
	}

	var relationBlock strings.Builder
	for _, r := range relations {
		fmt.Fprintf(&relationBlock, "- %s -[%s]-> %s\n", nameOf[r.FromID], r.Type, nameOf[r.ToID])
	}
	if relationBlock.Len() == 0 {
		relationBlock.WriteString("(none recorded)\n")
	}

	// entities carry the essential context, so the relationship block
	// absorbs the truncation first
	entities := truncateToTokens(entityBlock.String(), summaryPromptTokenBudget*3/4)
	budget := summaryPromptTokenBudget - countTokens(entities)
	relationships := truncateToTokens(relationBlock.String(), budget)

	return fmt.Sprintf(ai.CommunitySummaryPrompt, entities, relationships)
}

// fallbackSummaryOutput builds a deterministic summary from member names
// when generation is unavailable.
func fallbackSummaryOutput(members []common.Entity) communitySummaryOutput {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	shown := names
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return communitySummaryOutput{
		Summary: fmt.Sprintf(
			"A group of %d related entities including %s.",
			len(members), strings.Join(shown, ", "),
		),
		KeyEntities: shown,
	}
}

// keepKnownNames drops hallucinated names the model returned that do not
// belong to the community.
func keepKnownNames(names []string, members []common.Entity) []string {
	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		known[strings.ToLower(m.Name)] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := known[strings.ToLower(strings.TrimSpace(n))]; ok {
			out = append(out, strings.TrimSpace(n))
		}
	}
	return out
}

func countTokens(text string) int {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// truncateToTokens cuts text to roughly maxTokens, preserving whole lines.
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if countTokens(text) <= maxTokens {
		return text
	}
	lines := strings.Split(text, "\n")
	var b strings.Builder
	used := 0
	for _, line := range lines {
		n := countTokens(line) + 1
		if used+n > maxTokens {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
		used += n
	}
	return b.String()
}
