package worldstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatecrafters/chronicle/pkg/ai"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/store"
)

type memChangelogStore struct {
	entries []common.ChangelogEntry
	nextSeq int
}

func (m *memChangelogStore) CreateEntry(_ context.Context, entry *common.ChangelogEntry) (*common.ChangelogEntry, error) {
	stored := *entry
	m.nextSeq++
	stored.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, m.nextSeq, time.UTC)
	m.entries = append(m.entries, stored)
	return &stored, nil
}

func (m *memChangelogStore) ListEntriesForCampaign(_ context.Context, campaignID string, filter store.ChangelogFilter) ([]common.ChangelogEntry, error) {
	var out []common.ChangelogEntry
	for _, e := range m.entries {
		if e.CampaignID != campaignID {
			continue
		}
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}
		if filter.Applied != nil && e.AppliedToGraph != *filter.Applied {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memChangelogStore) MarkEntriesApplied(_ context.Context, campaignID string, entryIDs []string) error {
	ids := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		ids[id] = struct{}{}
	}
	for i := range m.entries {
		if m.entries[i].CampaignID != campaignID {
			continue
		}
		if _, ok := ids[m.entries[i].ID]; ok {
			m.entries[i].AppliedToGraph = true
		}
	}
	return nil
}

func (m *memChangelogStore) DeleteEntries(_ context.Context, campaignID string, entryIDs []string) error {
	ids := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		ids[id] = struct{}{}
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.CampaignID == campaignID {
			if _, ok := ids[e.ID]; ok {
				continue
			}
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return nil
}

type memEntityStore struct {
	entities []common.Entity
}

func (m *memEntityStore) ListEntitiesByCampaign(_ context.Context, campaignID string) ([]common.Entity, error) {
	var out []common.Entity
	for _, e := range m.entities {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEntityStore) GetEntityByID(_ context.Context, _, entityID string) (*common.Entity, error) {
	for i := range m.entities {
		if m.entities[i].ID == entityID {
			cp := m.entities[i]
			return &cp, nil
		}
	}
	return nil, common.NewNotFound("entity", entityID)
}

func (m *memEntityStore) GetRelationshipsForEntity(_ context.Context, _, _ string) ([]common.Relationship, error) {
	return nil, nil
}

func (m *memEntityStore) GetMinimalEntitiesForCampaign(_ context.Context, _ string) ([]common.EntityRef, error) {
	return nil, nil
}

func (m *memEntityStore) GetMinimalRelationshipsForCampaign(_ context.Context, _ string) ([]common.RelationshipRef, error) {
	return nil, nil
}

func (m *memEntityStore) UpdateEntity(_ context.Context, _ *common.Entity) error {
	return nil
}

type storedArchive struct {
	archive   common.ChangelogArchive
	embedding []float32
}

type memArchiveStore struct {
	archives  []storedArchive
	createErr error
}

func (m *memArchiveStore) CreateArchive(_ context.Context, archive *common.ChangelogArchive, embedding []float32) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.archives = append(m.archives, storedArchive{archive: *archive, embedding: embedding})
	return nil
}

func (m *memArchiveStore) GetArchiveByID(_ context.Context, archiveID string) (*common.ChangelogArchive, error) {
	for _, a := range m.archives {
		if a.archive.ID == archiveID {
			found := a.archive
			return &found, nil
		}
	}
	return nil, common.NewNotFound("archive", archiveID)
}

func (m *memArchiveStore) ListArchivesForCampaign(_ context.Context, campaignID string, to time.Time) ([]common.ChangelogArchive, error) {
	var out []common.ChangelogArchive
	for _, a := range m.archives {
		if a.archive.CampaignID != campaignID {
			continue
		}
		if !to.IsZero() && a.archive.FromTime.After(to) {
			continue
		}
		out = append(out, a.archive)
	}
	return out, nil
}

func (m *memArchiveStore) SearchArchives(_ context.Context, campaignID string, _ []float32, limit int) ([]common.ChangelogArchive, error) {
	var out []common.ChangelogArchive
	for _, a := range m.archives {
		if a.archive.CampaignID != campaignID || a.embedding == nil {
			continue
		}
		out = append(out, a.archive)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memColdStorage struct {
	objects map[string][]byte
	putErr  error
}

func newMemColdStorage() *memColdStorage {
	return &memColdStorage{objects: make(map[string][]byte)}
}

func (m *memColdStorage) Put(_ context.Context, key string, body []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	cp := append([]byte(nil), body...)
	m.objects[key] = cp
	return nil
}

func (m *memColdStorage) Get(_ context.Context, key string) ([]byte, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object at %s", key)
	}
	return body, nil
}

func (m *memColdStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type fakeAIClient struct {
	hasCredentials bool
	failGeneration bool
	failEmbedding  bool
	completions    int
	embeddings     int
}

func (f *fakeAIClient) GenerateCompletion(_ context.Context, _ string, _ ...ai.GenerateOption) (string, error) {
	f.completions++
	if f.failGeneration {
		return "", errors.New("simulated generation failure")
	}
	return "a generated batch summary", nil
}

func (f *fakeAIClient) GenerateCompletionWithFormat(_ context.Context, _, _, _ string, _ any, _ ...ai.GenerateOption) error {
	return errors.New("not used")
}

func (f *fakeAIClient) GenerateEmbedding(_ context.Context, input []byte) ([]float32, error) {
	f.embeddings++
	if f.failEmbedding {
		return nil, errors.New("simulated embedding failure")
	}
	vec := make([]float32, 4)
	for i, b := range input {
		vec[i%4] += float32(b) / 255
	}
	return vec, nil
}

func (f *fakeAIClient) HasCredentials() bool        { return f.hasCredentials }
func (f *fakeAIClient) ResetMetrics()               {}
func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }
