package worldstate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func archiveFixture() (*memChangelogStore, *memArchiveStore, *memColdStorage, *fakeAIClient, *Archiver) {
	entries := &memChangelogStore{}
	archives := &memArchiveStore{}
	cold := newMemColdStorage()
	client := &fakeAIClient{hasCredentials: true}
	return entries, archives, cold, client, NewArchiver(entries, archives, cold, client)
}

func appliedEntry(id, sessionID string, at time.Time) common.ChangelogEntry {
	return common.ChangelogEntry{
		ID:             id,
		CampaignID:     "camp",
		SessionID:      sessionID,
		Timestamp:      at,
		Payload:        entityUpdatePayload("hero", "status-"+id),
		AppliedToGraph: true,
		CreatedAt:      at,
	}
}

func TestCutBatchesRespectsSessionBoundaries(t *testing.T) {
	entries := []common.ChangelogEntry{
		appliedEntry("a1", "s1", ts(1, 0)),
		appliedEntry("a2", "s1", ts(1, 1)),
		appliedEntry("b1", "s2", ts(2, 0)),
		appliedEntry("a3", "s1", ts(1, 2)),
	}

	batches := cutBatches(entries)

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	for _, batch := range batches {
		session := batch[0].SessionID
		for _, e := range batch {
			if e.SessionID != session {
				t.Errorf("batch mixes sessions %q and %q", session, e.SessionID)
			}
		}
	}
	if len(batches[0]) != 3 {
		t.Errorf("first batch has %d entries, want the 3 s1 entries", len(batches[0]))
	}
}

func TestCutBatchesCapsBatchSize(t *testing.T) {
	var entries []common.ChangelogEntry
	for i := 0; i < MaxArchiveBatch+10; i++ {
		entries = append(entries, appliedEntry(fmt.Sprintf("e%04d", i), "s1", ts(1, 0).Add(time.Duration(i)*time.Minute)))
	}

	batches := cutBatches(entries)

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if len(batches[0]) != MaxArchiveBatch {
		t.Errorf("first batch has %d entries, want %d", len(batches[0]), MaxArchiveBatch)
	}
	if len(batches[1]) != 10 {
		t.Errorf("second batch has %d entries, want 10", len(batches[1]))
	}
}

func TestArchiveChangelogsWritesThenDeletes(t *testing.T) {
	entries, archives, cold, _, archiver := archiveFixture()

	entries.entries = []common.ChangelogEntry{
		appliedEntry("a1", "s1", ts(1, 0)),
		appliedEntry("a2", "s1", ts(1, 1)),
	}

	got, err := archiver.ArchiveChangelogs(context.Background(), "camp", ts(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d archives, want 1", len(got))
	}
	archive := got[0]
	if archive.EntryCount != 2 {
		t.Errorf("archive counts %d entries, want 2", archive.EntryCount)
	}
	if !archive.FromTime.Equal(ts(1, 0)) || !archive.ToTime.Equal(ts(1, 1)) {
		t.Errorf("archive time range %v..%v wrong", archive.FromTime, archive.ToTime)
	}
	if len(entries.entries) != 0 {
		t.Errorf("%d live entries remain, want 0 after archival", len(entries.entries))
	}
	if len(archives.archives) != 1 {
		t.Fatalf("got %d archive records, want 1", len(archives.archives))
	}
	if archives.archives[0].embedding == nil {
		t.Error("archive stored without embedding despite working client")
	}

	restored, err := archiver.RetrieveArchivedEntries(context.Background(), &archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(restored) != 2 || restored[0].ID != "a1" {
		t.Errorf("cold copy round trip wrong: %v", restored)
	}
	_ = cold
}

func TestArchiveChangelogsSkipsUnappliedAndRecent(t *testing.T) {
	entries, _, _, _, archiver := archiveFixture()

	unapplied := appliedEntry("pending", "s1", ts(1, 0))
	unapplied.AppliedToGraph = false
	entries.entries = []common.ChangelogEntry{
		unapplied,
		appliedEntry("old", "s1", ts(2, 0)),
		appliedEntry("recent", "s1", ts(20, 0)),
	}

	got, err := archiver.ArchiveChangelogs(context.Background(), "camp", ts(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].EntryCount != 1 {
		t.Fatalf("got %v, want one archive holding only the old applied entry", got)
	}
	if len(entries.entries) != 2 {
		t.Errorf("%d live entries remain, want the unapplied and recent ones", len(entries.entries))
	}
}

func TestArchiveChangelogsColdStorageFailureKeepsLiveRows(t *testing.T) {
	entries, archives, cold, _, archiver := archiveFixture()

	cold.putErr = errors.New("bucket unavailable")
	entries.entries = []common.ChangelogEntry{appliedEntry("a1", "s1", ts(1, 0))}

	got, err := archiver.ArchiveChangelogs(context.Background(), "camp", ts(10, 0))
	if err != nil {
		t.Fatalf("batch failures must be skipped, not returned: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d archives despite storage failure", len(got))
	}
	if len(entries.entries) != 1 {
		t.Error("live entries deleted without a confirmed cold copy")
	}
	if len(archives.archives) != 0 {
		t.Error("archive record created without a cold copy")
	}
}

func TestArchiveChangelogsEmbeddingFailureStillArchives(t *testing.T) {
	entries, archives, _, client, archiver := archiveFixture()

	client.failEmbedding = true
	entries.entries = []common.ChangelogEntry{appliedEntry("a1", "s1", ts(1, 0))}

	got, err := archiver.ArchiveChangelogs(context.Background(), "camp", ts(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d archives, want 1", len(got))
	}
	if archives.archives[0].embedding != nil {
		t.Error("expected nil embedding when the client fails")
	}
}

func TestSummarizeBatchFallsBackToDigest(t *testing.T) {
	_, _, _, client, archiver := archiveFixture()
	client.failGeneration = true

	batch := []common.ChangelogEntry{appliedEntry("a1", "s1", ts(1, 0))}
	got := archiver.summarizeBatch(context.Background(), batch)

	if got != batchDigest(batch) {
		t.Errorf("got %q, want the deterministic digest", got)
	}
}

func TestSummarizeBatchWithoutCredentialsUsesDigest(t *testing.T) {
	_, _, _, client, archiver := archiveFixture()
	client.hasCredentials = false

	batch := []common.ChangelogEntry{appliedEntry("a1", "s1", ts(1, 0))}
	got := archiver.summarizeBatch(context.Background(), batch)

	if got != batchDigest(batch) {
		t.Errorf("got %q, want the digest", got)
	}
	if client.completions != 0 {
		t.Error("generation attempted without credentials")
	}
}

func TestSearchArchivedChangelogs(t *testing.T) {
	entries, _, _, _, archiver := archiveFixture()

	entries.entries = []common.ChangelogEntry{
		appliedEntry("a1", "s1", ts(1, 0)),
		appliedEntry("b1", "s2", ts(2, 0)),
	}
	if _, err := archiver.ArchiveChangelogs(context.Background(), "camp", ts(10, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := archiver.SearchArchivedChangelogs(context.Background(), "camp", "what happened to the hero", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d results, want both archives", len(got))
	}
}

func TestHistoricalSnapshotCombinesArchivedAndLive(t *testing.T) {
	entries, _, _, _, archiver := archiveFixture()

	entries.entries = []common.ChangelogEntry{
		appliedEntry("old", "s1", ts(1, 0)),
	}
	if _, err := archiver.ArchiveChangelogs(context.Background(), "camp", ts(5, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live := appliedEntry("live", "s2", ts(6, 0))
	live.Payload = entityUpdatePayload("hero", "triumphant")
	entries.entries = append(entries.entries, live)

	snapshot, err := archiver.HistoricalSnapshot(context.Background(), "camp", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := snapshot.EntityState["hero"].Status; got != "triumphant" {
		t.Errorf("got status %q, want the live entry to win", got)
	}

	// as of before the live entry, the archived state wins
	past, err := archiver.HistoricalSnapshot(context.Background(), "camp", ts(5, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := past.EntityState["hero"].Status; got != "status-old" {
		t.Errorf("got status %q, want the archived state", got)
	}

	// a cutoff exactly at the live entry's timestamp includes it
	atLive, err := archiver.HistoricalSnapshot(context.Background(), "camp", ts(6, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atLive.EntityState["hero"].Status; got != "triumphant" {
		t.Errorf("got status %q, want the entry at the cutoff folded in", got)
	}
}
