package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatecrafters/chronicle/pkg/ai"
	"github.com/fatecrafters/chronicle/pkg/common"
)

type memEntityStore struct {
	entities  map[string]*common.Entity
	refs      []common.EntityRef
	relRefs   []common.RelationshipRef
	relations map[string][]common.Relationship
	updated   []*common.Entity
	failIDs   map[string]struct{}
}

func newMemEntityStore() *memEntityStore {
	return &memEntityStore{
		entities:  make(map[string]*common.Entity),
		relations: make(map[string][]common.Relationship),
		failIDs:   make(map[string]struct{}),
	}
}

func (m *memEntityStore) addEntity(id, name string) {
	m.entities[id] = &common.Entity{ID: id, CampaignID: "camp", Name: name, Type: common.EntityTypeNPC}
	m.refs = append(m.refs, common.EntityRef{ID: id, Name: name, Type: common.EntityTypeNPC})
}

func (m *memEntityStore) addRelationship(id, from, to string, strength float64) {
	rel := common.Relationship{ID: id, CampaignID: "camp", FromID: from, ToID: to, Type: "knows", Strength: strength}
	m.relations[from] = append(m.relations[from], rel)
	m.relations[to] = append(m.relations[to], rel)
	m.relRefs = append(m.relRefs, common.RelationshipRef{FromID: from, ToID: to, Strength: strength})
}

func (m *memEntityStore) ListEntitiesByCampaign(_ context.Context, _ string) ([]common.Entity, error) {
	out := make([]common.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memEntityStore) GetEntityByID(_ context.Context, _, entityID string) (*common.Entity, error) {
	if _, ok := m.failIDs[entityID]; ok {
		return nil, errors.New("simulated load failure")
	}
	e, ok := m.entities[entityID]
	if !ok {
		return nil, common.NewNotFound("entity", entityID)
	}
	cp := *e
	return &cp, nil
}

func (m *memEntityStore) GetRelationshipsForEntity(_ context.Context, _, entityID string) ([]common.Relationship, error) {
	return m.relations[entityID], nil
}

func (m *memEntityStore) GetMinimalEntitiesForCampaign(_ context.Context, _ string) ([]common.EntityRef, error) {
	return m.refs, nil
}

func (m *memEntityStore) GetMinimalRelationshipsForCampaign(_ context.Context, _ string) ([]common.RelationshipRef, error) {
	return m.relRefs, nil
}

func (m *memEntityStore) UpdateEntity(_ context.Context, entity *common.Entity) error {
	cp := *entity
	m.entities[entity.ID] = &cp
	m.updated = append(m.updated, &cp)
	return nil
}

type memCommunityStore struct {
	communities []common.Community
	deletes     int
}

func (m *memCommunityStore) DeleteCommunitiesByCampaign(_ context.Context, campaignID string) error {
	m.deletes++
	kept := m.communities[:0]
	for _, c := range m.communities {
		if c.CampaignID != campaignID {
			kept = append(kept, c)
		}
	}
	m.communities = kept
	return nil
}

func (m *memCommunityStore) CreateCommunity(_ context.Context, community *common.Community) error {
	m.communities = append(m.communities, *community)
	return nil
}

func (m *memCommunityStore) GetCommunityByID(_ context.Context, communityID string) (*common.Community, error) {
	for i := range m.communities {
		if m.communities[i].ID == communityID {
			cp := m.communities[i]
			return &cp, nil
		}
	}
	return nil, common.NewNotFound("community", communityID)
}

func (m *memCommunityStore) ListCommunitiesByCampaign(_ context.Context, campaignID string) ([]common.Community, error) {
	var out []common.Community
	for _, c := range m.communities {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCommunityStore) FindCommunitiesContainingEntity(_ context.Context, campaignID, entityID string) ([]common.Community, error) {
	var out []common.Community
	for _, c := range m.communities {
		if c.CampaignID != campaignID {
			continue
		}
		for _, id := range c.EntityIDs {
			if id == entityID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (m *memCommunityStore) GetChildCommunities(_ context.Context, communityID string) ([]common.Community, error) {
	var out []common.Community
	for _, c := range m.communities {
		if c.ParentID == communityID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memSummaryStore struct {
	summaries map[string]*common.CommunitySummary
	creates   int
}

func newMemSummaryStore() *memSummaryStore {
	return &memSummaryStore{summaries: make(map[string]*common.CommunitySummary)}
}

func (m *memSummaryStore) GetSummaryByCommunityID(_ context.Context, communityID string) (*common.CommunitySummary, error) {
	s, ok := m.summaries[communityID]
	if !ok {
		return nil, common.NewNotFound("summary", communityID)
	}
	cp := *s
	return &cp, nil
}

func (m *memSummaryStore) CreateSummary(_ context.Context, summary *common.CommunitySummary) error {
	m.creates++
	cp := *summary
	m.summaries[summary.CommunityID] = &cp
	return nil
}

func (m *memSummaryStore) DeleteSummariesByCommunity(_ context.Context, communityID string) error {
	delete(m.summaries, communityID)
	return nil
}

func (m *memSummaryStore) ListSummariesByCampaign(_ context.Context, _ string) ([]common.CommunitySummary, error) {
	var out []common.CommunitySummary
	for _, s := range m.summaries {
		out = append(out, *s)
	}
	return out, nil
}

type memImportanceStore struct {
	records map[string]*common.EntityImportance
	batches int
}

func newMemImportanceStore() *memImportanceStore {
	return &memImportanceStore{records: make(map[string]*common.EntityImportance)}
}

func (m *memImportanceStore) GetImportance(_ context.Context, _, entityID string) (*common.EntityImportance, error) {
	r, ok := m.records[entityID]
	if !ok {
		return nil, common.NewNotFound("importance", entityID)
	}
	cp := *r
	return &cp, nil
}

func (m *memImportanceStore) UpsertImportance(_ context.Context, record *common.EntityImportance) error {
	cp := *record
	m.records[record.EntityID] = &cp
	return nil
}

func (m *memImportanceStore) UpsertImportanceBatch(_ context.Context, records []common.EntityImportance) error {
	m.batches++
	for i := range records {
		cp := records[i]
		m.records[cp.EntityID] = &cp
	}
	return nil
}

func (m *memImportanceStore) GetImportanceForCampaign(_ context.Context, _ string) ([]common.EntityImportance, error) {
	var out []common.EntityImportance
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, nil
}

type fakeAIClient struct {
	hasCredentials bool
	completionErr  error
	formatFn       func(out any) error
	calls          int
}

func (f *fakeAIClient) GenerateCompletion(_ context.Context, _ string, _ ...ai.GenerateOption) (string, error) {
	f.calls++
	if f.completionErr != nil {
		return "", f.completionErr
	}
	return "generated text", nil
}

func (f *fakeAIClient) GenerateCompletionWithFormat(_ context.Context, _, _, _ string, out any, _ ...ai.GenerateOption) error {
	f.calls++
	if f.completionErr != nil {
		return f.completionErr
	}
	if f.formatFn != nil {
		return f.formatFn(out)
	}
	return fmt.Errorf("no format handler configured")
}

func (f *fakeAIClient) GenerateEmbedding(_ context.Context, input []byte) ([]float32, error) {
	f.calls++
	if f.completionErr != nil {
		return nil, f.completionErr
	}
	// deterministic toy embedding
	vec := make([]float32, 4)
	for i, b := range input {
		vec[i%4] += float32(b) / 255
	}
	return vec, nil
}

func (f *fakeAIClient) HasCredentials() bool        { return f.hasCredentials }
func (f *fakeAIClient) ResetMetrics()               {}
func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }
