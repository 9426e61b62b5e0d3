package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"
)

// DefaultMinCommunitySize is the smallest community persisted when the
// caller does not override it.
const DefaultMinCommunitySize = 2

// DetectOptions configures one community detection run.
type DetectOptions struct {
	MinCommunitySize int
	Resolution       float64
}

// CommunityService loads a campaign's graph, partitions it into
// hierarchical communities, and persists the result. Detection recreates
// all of a campaign's communities; there is no incremental merge and no
// stable community identity across runs.
type CommunityService struct {
	entities    store.EntityStore
	communities store.CommunityStore
}

// NewCommunityService creates a CommunityService backed by the given stores.
func NewCommunityService(entities store.EntityStore, communities store.CommunityStore) *CommunityService {
	return &CommunityService{
		entities:    entities,
		communities: communities,
	}
}

// DetectCommunities partitions the campaign graph and persists the
// surviving communities, replacing all previously stored ones. Communities
// smaller than MinCommunitySize are dropped at every level. The returned
// slice may be empty when the graph has no cluster of sufficient size.
func (s *CommunityService) DetectCommunities(
	ctx context.Context,
	campaignID string,
	opts DetectOptions,
) ([]common.Community, error) {
	minSize := opts.MinCommunitySize
	if minSize <= 0 {
		minSize = DefaultMinCommunitySize
	}

	entities, err := s.entities.GetMinimalEntitiesForCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	relations, err := s.entities.GetMinimalRelationshipsForCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}

	edges := buildEdgeList(entities, relations)
	logger.Info("[Communities] Detecting",
		"campaign_id", campaignID,
		"entities", len(entities),
		"edges", len(edges),
	)

	levels := DetectHierarchy(edges, opts.Resolution)
	communities := buildCommunityTree(campaignID, levels, minSize)

	if err := s.communities.DeleteCommunitiesByCampaign(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("failed to delete prior communities: %w", err)
	}

	// Parents are created before children so the tree is valid at every
	// point during persistence.
	sort.SliceStable(communities, func(a, b int) bool {
		return communities[a].Level > communities[b].Level
	})
	for i := range communities {
		if err := s.communities.CreateCommunity(ctx, &communities[i]); err != nil {
			return nil, fmt.Errorf("failed to persist community %s: %w", communities[i].ID, err)
		}
	}

	logger.Info("[Communities] Persisted",
		"campaign_id", campaignID,
		"communities", len(communities),
		"levels", len(levels),
	)

	return communities, nil
}

// RebuildCommunities deletes all of a campaign's communities and redetects
// them with default options.
func (s *CommunityService) RebuildCommunities(ctx context.Context, campaignID string) ([]common.Community, error) {
	return s.DetectCommunities(ctx, campaignID, DetectOptions{})
}

// buildEdgeList converts directed relationships into undirected edges,
// collapsing reciprocal pairs by summing their strengths. Edges touching
// entities outside the campaign are dropped.
func buildEdgeList(entities []common.EntityRef, relations []common.RelationshipRef) []Edge {
	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		known[e.ID] = struct{}{}
	}

	type pair struct{ a, b string }
	weights := make(map[pair]float64)
	var order []pair
	for _, r := range relations {
		if _, ok := known[r.FromID]; !ok {
			continue
		}
		if _, ok := known[r.ToID]; !ok {
			continue
		}
		if r.FromID == r.ToID {
			continue
		}
		w := r.Strength
		if w <= 0 {
			w = 1.0
		}
		a, b := r.FromID, r.ToID
		if a > b {
			a, b = b, a
		}
		key := pair{a, b}
		if _, ok := weights[key]; !ok {
			order = append(order, key)
		}
		weights[key] += w
	}

	edges := make([]Edge, 0, len(weights))
	for _, key := range order {
		edges = append(edges, Edge{From: key.a, To: key.b, Weight: weights[key]})
	}
	return edges
}

// buildCommunityTree groups level assignments into Community records,
// dropping undersized groups and linking each surviving community to its
// surviving aggregate at the next level.
func buildCommunityTree(campaignID string, levels [][]Assignment, minSize int) []common.Community {
	type key struct {
		level int
		comm  int
	}

	members := make(map[key][]string)
	levelOf := make(map[string][]int, 0) // entityID -> community id per level
	for lvl, assignments := range levels {
		for _, a := range assignments {
			k := key{level: lvl, comm: a.CommunityID}
			members[k] = append(members[k], a.NodeID)
			levelOf[a.NodeID] = append(levelOf[a.NodeID], a.CommunityID)
		}
	}

	now := time.Now().UTC()
	ids := make(map[key]string)
	var out []common.Community
	// Walk coarsest level first so parent ids exist before children link
	// to them.
	for lvl := len(levels) - 1; lvl >= 0; lvl-- {
		commIDs := make([]int, 0)
		seen := make(map[int]struct{})
		for _, a := range levels[lvl] {
			if _, ok := seen[a.CommunityID]; ok {
				continue
			}
			seen[a.CommunityID] = struct{}{}
			commIDs = append(commIDs, a.CommunityID)
		}
		sort.Ints(commIDs)

		for _, cid := range commIDs {
			k := key{level: lvl, comm: cid}
			entityIDs := members[k]
			if len(entityIDs) < minSize {
				continue
			}

			id, err := gonanoid.New()
			if err != nil {
				continue
			}
			ids[k] = id

			parentID := ""
			if lvl+1 < len(levels) {
				parentComm := levelOf[entityIDs[0]][lvl+1]
				if pid, ok := ids[key{level: lvl + 1, comm: parentComm}]; ok {
					parentID = pid
				}
			}

			sorted := append([]string(nil), entityIDs...)
			sort.Strings(sorted)
			out = append(out, common.Community{
				ID:         id,
				CampaignID: campaignID,
				Level:      lvl,
				ParentID:   parentID,
				EntityIDs:  sorted,
				CreatedAt:  now,
			})
		}
	}

	return out
}
