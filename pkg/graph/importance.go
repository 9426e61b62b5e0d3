package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"
)

const (
	pagerankDamping    = 0.85
	pagerankIterations = 30
)

// ImportanceService computes 0-100 importance scores for campaign entities
// from graph centrality signals and community membership.
//
// The dedicated importance store is optional. When it is nil, scores live
// in an entity metadata field instead; exactly one of the two is
// authoritative per deployment.
type ImportanceService struct {
	entities    store.EntityStore
	communities store.CommunityStore
	importance  store.ImportanceStore
}

// NewImportanceService creates an ImportanceService. Pass a nil importance
// store to use the metadata-embedded fallback.
func NewImportanceService(
	entities store.EntityStore,
	communities store.CommunityStore,
	importance store.ImportanceStore,
) *ImportanceService {
	return &ImportanceService{
		entities:    entities,
		communities: communities,
		importance:  importance,
	}
}

// GetEntityImportance resolves an entity's importance score through a
// single lookup chain: dedicated store record, then the embedded metadata
// field, then a score computed from the entity's local graph. The computed
// value is written back only when persist is true. The result is always
// within [0,100]; an isolated entity gets a score, not an error.
func (s *ImportanceService) GetEntityImportance(
	ctx context.Context,
	campaignID, entityID string,
	persist bool,
) (float64, error) {
	if s.importance != nil {
		record, err := s.importance.GetImportance(ctx, campaignID, entityID)
		if err != nil && !common.IsNotFound(err) {
			return 0, fmt.Errorf("failed to read importance record: %w", err)
		}
		if record != nil {
			return clampScore(record.Score), nil
		}
	}

	entity, err := s.entities.GetEntityByID(ctx, campaignID, entityID)
	if err != nil {
		return 0, err
	}
	if entity == nil {
		return 0, common.NewNotFound("entity", entityID)
	}

	if score, ok := metadataScore(entity.Metadata); ok {
		return clampScore(score), nil
	}

	score, err := s.computeLocalScore(ctx, campaignID, entityID)
	if err != nil {
		return 0, err
	}

	if persist {
		if err := s.persistScore(ctx, campaignID, entity, score); err != nil {
			return 0, err
		}
	}

	return score, nil
}

// RecalculateForCampaign recomputes importance for every entity in the
// campaign from a composite of degree centrality, a PageRank-style rank
// signal, betweenness centrality, and a community-depth bonus. Results are
// written as one batch upsert when a dedicated store exists, otherwise
// into each entity's metadata individually. A single entity failing never
// aborts the batch; the returned map holds every score that was computed.
func (s *ImportanceService) RecalculateForCampaign(
	ctx context.Context,
	campaignID string,
) (map[string]float64, error) {
	entities, err := s.entities.GetMinimalEntitiesForCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	if len(entities) == 0 {
		return map[string]float64{}, nil
	}
	relations, err := s.entities.GetMinimalRelationshipsForCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}
	communities, err := s.communities.ListCommunitiesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load communities: %w", err)
	}

	logger.Info("[Importance] Recalculating",
		"campaign_id", campaignID,
		"entities", len(entities),
		"relationships", len(relations),
	)

	signals := computeSignals(entities, relations, communities)

	now := time.Now().UTC()
	scores := make(map[string]float64, len(entities))
	records := make([]common.EntityImportance, 0, len(entities))
	for _, e := range entities {
		sig, ok := signals[e.ID]
		if !ok || math.IsNaN(sig.score) || math.IsInf(sig.score, 0) {
			logger.Warn("[Importance] Skipping entity with unusable signals", "entity_id", e.ID)
			continue
		}
		scores[e.ID] = sig.score
		records = append(records, common.EntityImportance{
			EntityID:       e.ID,
			CampaignID:     campaignID,
			PageRank:       sig.pagerank,
			Betweenness:    sig.betweenness,
			HierarchyLevel: sig.hierarchy,
			Score:          sig.score,
			ComputedAt:     now,
		})
	}

	if s.importance != nil {
		if err := s.importance.UpsertImportanceBatch(ctx, records); err != nil {
			return scores, fmt.Errorf("failed to upsert importance batch: %w", err)
		}
		return scores, nil
	}

	for _, record := range records {
		if err := s.persistMetadataScore(ctx, campaignID, record.EntityID, record.Score); err != nil {
			logger.Error("[Importance] Failed to persist score",
				"entity_id", record.EntityID,
				"err", err,
			)
		}
	}
	return scores, nil
}

type importanceSignals struct {
	pagerank    float64
	betweenness float64
	hierarchy   int
	score       float64
}

// computeSignals derives all centrality signals in one pass over the
// campaign subgraph. Every signal is normalized to [0,1] before the
// composite is formed, so the composite is bounded and monotonic in each
// input.
func computeSignals(
	entities []common.EntityRef,
	relations []common.RelationshipRef,
	communities []common.Community,
) map[string]importanceSignals {
	index := make(map[string]int, len(entities))
	for i, e := range entities {
		index[e.ID] = i
	}
	n := len(entities)

	type link struct {
		node   int
		weight float64
	}
	adj := make([][]link, n)
	degree := make([]float64, n)
	for _, r := range relations {
		a, okA := index[r.FromID]
		b, okB := index[r.ToID]
		if !okA || !okB || a == b {
			continue
		}
		w := r.Strength
		if w <= 0 {
			w = 1.0
		}
		adj[a] = append(adj[a], link{node: b, weight: w})
		adj[b] = append(adj[b], link{node: a, weight: w})
		degree[a] += w
		degree[b] += w
	}

	// Degree centrality, normalized by the campaign maximum.
	maxDegree := 0.0
	for _, d := range degree {
		maxDegree = math.Max(maxDegree, d)
	}

	// PageRank restricted to the campaign subgraph.
	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	for iter := 0; iter < pagerankIterations; iter++ {
		base := (1.0 - pagerankDamping) / float64(n)
		for i := range next {
			next[i] = base
		}
		for i := 0; i < n; i++ {
			if degree[i] == 0 {
				// dangling mass is spread uniformly
				share := pagerankDamping * rank[i] / float64(n)
				for j := range next {
					next[j] += share
				}
				continue
			}
			for _, l := range adj[i] {
				next[l.node] += pagerankDamping * rank[i] * l.weight / degree[i]
			}
		}
		rank, next = next, rank
	}
	maxRank := 0.0
	for _, r := range rank {
		maxRank = math.Max(maxRank, r)
	}

	unweighted := make([][]int, n)
	for i, links := range adj {
		unweighted[i] = make([]int, len(links))
		for j, l := range links {
			unweighted[i][j] = l.node
		}
	}
	between := betweennessCentrality(unweighted)
	maxBetween := 0.0
	for _, b := range between {
		maxBetween = math.Max(maxBetween, b)
	}

	// Community-depth bonus: membership in a coarser (higher level, more
	// central) community raises the signal.
	maxLevel := 0
	for _, c := range communities {
		maxLevel = max(maxLevel, c.Level)
	}
	bestLevel := make(map[string]int, n)
	for _, c := range communities {
		for _, id := range c.EntityIDs {
			if lvl, ok := bestLevel[id]; !ok || c.Level > lvl {
				bestLevel[id] = c.Level
			}
		}
	}

	out := make(map[string]importanceSignals, n)
	for id, i := range index {
		degNorm := 0.0
		if maxDegree > 0 {
			degNorm = degree[i] / maxDegree
		}
		rankNorm := 0.0
		if maxRank > 0 {
			rankNorm = rank[i] / maxRank
		}
		btwNorm := 0.0
		if maxBetween > 0 {
			btwNorm = between[i] / maxBetween
		}
		hierNorm := 0.0
		hierLevel := 0
		if lvl, ok := bestLevel[id]; ok {
			hierNorm = float64(lvl+1) / float64(maxLevel+1)
			hierLevel = int(math.Round(hierNorm * 100))
		}

		composite := 100 * (0.35*rankNorm + 0.30*degNorm + 0.20*btwNorm + 0.15*hierNorm)
		out[id] = importanceSignals{
			pagerank:    rank[i],
			betweenness: between[i],
			hierarchy:   hierLevel,
			score:       clampScore(composite),
		}
	}
	return out
}

// betweennessCentrality runs Brandes' algorithm over the unweighted
// undirected projection of the adjacency structure.
func betweennessCentrality(adj [][]int) []float64 {
	n := len(adj)
	cb := make([]float64, n)
	for s := 0; s < n; s++ {
		stack := make([]int, 0, n)
		preds := make([][]int, n)
		sigma := make([]float64, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		sigma[s] = 1
		dist[s] = 0

		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}
	// each undirected path is counted from both endpoints
	for i := range cb {
		cb[i] /= 2
	}
	return cb
}

// computeLocalScore scores a single entity from its immediate
// neighborhood without loading the whole campaign graph.
func (s *ImportanceService) computeLocalScore(ctx context.Context, campaignID, entityID string) (float64, error) {
	relations, err := s.entities.GetRelationshipsForEntity(ctx, campaignID, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to load relationships: %w", err)
	}

	degree := float64(len(relations))
	strength := 0.0
	for _, r := range relations {
		w := r.Strength
		if w <= 0 {
			w = 1.0
		}
		strength += w
	}

	hierNorm := 0.0
	containing, err := s.communities.FindCommunitiesContainingEntity(ctx, campaignID, entityID)
	if err == nil && len(containing) > 0 {
		bestLevel, maxLevel := 0, 0
		for _, c := range containing {
			bestLevel = max(bestLevel, c.Level)
			maxLevel = max(maxLevel, c.Level)
		}
		hierNorm = float64(bestLevel+1) / float64(maxLevel+2)
	}

	// saturating transforms keep the score bounded and monotonic
	degNorm := degree / (degree + 5)
	strengthNorm := strength / (strength + 10)

	return clampScore(100 * (0.45*degNorm + 0.35*strengthNorm + 0.20*hierNorm)), nil
}

func (s *ImportanceService) persistScore(ctx context.Context, campaignID string, entity *common.Entity, score float64) error {
	if s.importance != nil {
		return s.importance.UpsertImportance(ctx, &common.EntityImportance{
			EntityID:   entity.ID,
			CampaignID: campaignID,
			Score:      score,
			ComputedAt: time.Now().UTC(),
		})
	}
	if entity.Metadata == nil {
		entity.Metadata = make(map[string]any)
	}
	entity.Metadata[common.ImportanceMetadataKey] = score
	return s.entities.UpdateEntity(ctx, entity)
}

func (s *ImportanceService) persistMetadataScore(ctx context.Context, campaignID, entityID string, score float64) error {
	entity, err := s.entities.GetEntityByID(ctx, campaignID, entityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return common.NewNotFound("entity", entityID)
	}
	if entity.Metadata == nil {
		entity.Metadata = make(map[string]any)
	}
	entity.Metadata[common.ImportanceMetadataKey] = score
	return s.entities.UpdateEntity(ctx, entity)
}

// metadataScore extracts the embedded fallback score from entity metadata.
func metadataScore(metadata map[string]any) (float64, bool) {
	if metadata == nil {
		return 0, false
	}
	switch v := metadata[common.ImportanceMetadataKey].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func clampScore(score float64) float64 {
	return math.Min(100, math.Max(0, score))
}
