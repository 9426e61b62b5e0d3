package worldstate

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/fatecrafters/chronicle/pkg/ai"
	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"
)

// MaxArchiveBatch caps how many changelog entries one cold-storage batch
// may hold. Batches are additionally cut at session boundaries so a batch
// never spans sessions.
const MaxArchiveBatch = 500

// ColdStorage is the object store holding compressed archive batches.
type ColdStorage interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Archiver moves applied changelog entries into compressed cold-storage
// batches, indexed by an embedding of a generated batch summary so the
// archived history stays searchable. Live rows are deleted only after
// their batch is confirmed written.
type Archiver struct {
	entries  store.ChangelogStore
	archives store.ArchiveStore
	cold     ColdStorage
	aiClient ai.SummaryAIClient
}

// NewArchiver creates an Archiver.
func NewArchiver(
	entries store.ChangelogStore,
	archives store.ArchiveStore,
	cold ColdStorage,
	aiClient ai.SummaryAIClient,
) *Archiver {
	return &Archiver{
		entries:  entries,
		archives: archives,
		cold:     cold,
		aiClient: aiClient,
	}
}

// ArchiveChangelogs archives every applied entry recorded at or before
// the cutoff. A failing batch is logged and skipped; the returned slice
// holds every archive that was written.
func (a *Archiver) ArchiveChangelogs(ctx context.Context, campaignID string, before time.Time) ([]common.ChangelogArchive, error) {
	applied := true
	entries, err := a.entries.ListEntriesForCampaign(ctx, campaignID, store.ChangelogFilter{
		To:      before,
		Applied: &applied,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archivable entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	batches := cutBatches(entries)
	logger.Info("[Archive] Archiving",
		"campaign_id", campaignID,
		"entries", len(entries),
		"batches", len(batches),
	)

	var out []common.ChangelogArchive
	for _, batch := range batches {
		archive, err := a.archiveBatch(ctx, campaignID, batch)
		if err != nil {
			logger.Error("[Archive] Skipping batch",
				"campaign_id", campaignID,
				"entries", len(batch),
				"err", err,
			)
			continue
		}
		out = append(out, *archive)
	}
	return out, nil
}

// cutBatches splits entries into archive batches, cutting at session
// boundaries and at MaxArchiveBatch. Entries are ordered by in-world
// timestamp, ties by creation time.
func cutBatches(entries []common.ChangelogEntry) [][]common.ChangelogEntry {
	ordered := append([]common.ChangelogEntry(nil), entries...)
	sort.SliceStable(ordered, func(a, b int) bool {
		if !ordered[a].Timestamp.Equal(ordered[b].Timestamp) {
			return ordered[a].Timestamp.Before(ordered[b].Timestamp)
		}
		return ordered[a].CreatedAt.Before(ordered[b].CreatedAt)
	})

	var batches [][]common.ChangelogEntry
	var current []common.ChangelogEntry
	for _, entry := range ordered {
		boundary := len(current) >= MaxArchiveBatch ||
			(len(current) > 0 && current[len(current)-1].SessionID != entry.SessionID)
		if boundary {
			batches = append(batches, current)
			current = nil
		}
		current = append(current, entry)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// archiveBatch writes one batch to cold storage, records the archive row
// with its embedding, and only then deletes the live entries.
func (a *Archiver) archiveBatch(ctx context.Context, campaignID string, batch []common.ChangelogEntry) (*common.ChangelogArchive, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("campaigns/%s/changelog/%s.json.gz", campaignID, id)

	body, err := compressEntries(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to compress batch: %w", err)
	}
	if err := a.cold.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("failed to write batch to cold storage: %w", err)
	}

	summary := a.summarizeBatch(ctx, batch)
	embedding, err := a.aiClient.GenerateEmbedding(ctx, []byte(summary))
	if err != nil {
		logger.Warn("[Archive] Embedding unavailable, batch will not be searchable", "key", key, "err", err)
		embedding = nil
	}

	archive := &common.ChangelogArchive{
		ID:         id,
		CampaignID: campaignID,
		SessionID:  batch[0].SessionID,
		FromTime:   batch[0].Timestamp,
		ToTime:     batch[len(batch)-1].Timestamp,
		EntryCount: len(batch),
		StorageKey: key,
		Summary:    summary,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.archives.CreateArchive(ctx, archive, embedding); err != nil {
		// the cold copy is orphaned but the live rows stay intact
		return nil, fmt.Errorf("failed to record archive: %w", err)
	}

	ids := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.ID
	}
	if err := a.entries.DeleteEntries(ctx, campaignID, ids); err != nil {
		logger.Error("[Archive] Archived but failed to delete live entries",
			"archive_id", archive.ID,
			"err", err,
		)
	}
	return archive, nil
}

// summarizeBatch produces the searchable description of one batch, falling
// back to a deterministic digest when generation is unavailable.
func (a *Archiver) summarizeBatch(ctx context.Context, batch []common.ChangelogEntry) string {
	digest := batchDigest(batch)
	if !a.aiClient.HasCredentials() {
		return digest
	}
	summary, err := a.aiClient.GenerateCompletion(
		ctx,
		fmt.Sprintf(ai.ArchiveSummaryPrompt, digest),
		ai.WithTemperature(0.2),
	)
	if err != nil || strings.TrimSpace(summary) == "" {
		logger.Warn("[Archive] Summary generation failed, using digest", "err", err)
		return digest
	}
	return strings.TrimSpace(summary)
}

// batchDigest renders a batch's changes as plain lines, both as prompt
// input and as the fallback summary.
func batchDigest(batch []common.ChangelogEntry) string {
	var b strings.Builder
	for _, entry := range batch {
		for _, u := range entry.Payload.EntityUpdates {
			fmt.Fprintf(&b, "entity %s -> %s\n", u.EntityID, u.Status)
		}
		for _, u := range entry.Payload.RelationshipUpdates {
			fmt.Fprintf(&b, "relationship %s -> %s\n", RelationshipKey(u.FromID, u.ToID), u.NewStatus)
		}
		for _, n := range entry.Payload.NewEntities {
			fmt.Fprintf(&b, "new %s %s (%s)\n", n.Type, n.Name, n.EntityID)
		}
	}
	return b.String()
}

// SearchArchivedChangelogs finds the archive batches whose summaries are
// semantically closest to the query.
func (a *Archiver) SearchArchivedChangelogs(ctx context.Context, campaignID, query string, limit int) ([]common.ChangelogArchive, error) {
	if limit <= 0 {
		limit = 10
	}
	embedding, err := a.aiClient.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return a.archives.SearchArchives(ctx, campaignID, embedding, limit)
}

// RetrieveArchivedEntries loads one archive batch back from cold storage.
func (a *Archiver) RetrieveArchivedEntries(ctx context.Context, archive *common.ChangelogArchive) ([]common.ChangelogEntry, error) {
	body, err := a.cold.Get(ctx, archive.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", archive.ID, err)
	}
	return decompressEntries(body)
}

// HistoricalSnapshot rebuilds the overlay as of a point in time, combining
// archived batches with whatever entries are still live. Unreadable
// archives are logged and skipped.
func (a *Archiver) HistoricalSnapshot(ctx context.Context, campaignID string, at time.Time) (*common.OverlaySnapshot, error) {
	archives, err := a.archives.ListArchivesForCampaign(ctx, campaignID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	var combined []common.ChangelogEntry
	for i := range archives {
		entries, err := a.RetrieveArchivedEntries(ctx, &archives[i])
		if err != nil {
			logger.Error("[Archive] Skipping unreadable archive", "archive_id", archives[i].ID, "err", err)
			continue
		}
		for _, e := range entries {
			if at.IsZero() || !e.Timestamp.After(at) {
				combined = append(combined, e)
			}
		}
	}

	live, err := a.entries.ListEntriesForCampaign(ctx, campaignID, store.ChangelogFilter{To: at})
	if err != nil {
		return nil, fmt.Errorf("failed to list live entries: %w", err)
	}
	combined = append(combined, live...)

	return BuildOverlay(campaignID, combined), nil
}

func compressEntries(entries []common.ChangelogEntry) ([]byte, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressEntries(body []byte) ([]common.ChangelogEntry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	var entries []common.ChangelogEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
