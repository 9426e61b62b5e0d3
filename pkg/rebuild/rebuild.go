package rebuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/store"
)

// ErrRebuildInProgress rejects a new rebuild while one is already pending
// or running for the campaign.
var ErrRebuildInProgress = errors.New("a rebuild is already in progress for this campaign")

// CommunityRebuilder redetects a campaign's communities.
type CommunityRebuilder interface {
	RebuildCommunities(ctx context.Context, campaignID string) ([]common.Community, error)
}

// ImportanceRecalculator recomputes importance scores for a campaign.
type ImportanceRecalculator interface {
	RecalculateForCampaign(ctx context.Context, campaignID string) (map[string]float64, error)
}

// ChangelogApplier exposes the changelog operations the pipeline needs:
// finding unapplied entries and marking them applied once the graph
// reflects them.
type ChangelogApplier interface {
	ListEntries(ctx context.Context, campaignID string, filter store.ChangelogFilter) ([]common.ChangelogEntry, error)
	MarkApplied(ctx context.Context, campaignID string, entryIDs []string) error
}

// SummaryScheduler defers community summarization out of the rebuild
// critical path, typically onto a queue.
type SummaryScheduler interface {
	ScheduleSummaries(ctx context.Context, campaignID string) error
}

// Result is the structured outcome of one rebuild run. Execute always
// returns a Result; it never panics outward.
type Result struct {
	RebuildID      string   `json:"rebuild_id"`
	CampaignID     string   `json:"campaign_id"`
	Mode           string   `json:"mode"`
	Communities    int      `json:"communities"`
	ScoredEntities int      `json:"scored_entities"`
	AppliedEntries int      `json:"applied_entries"`
	Warnings       []string `json:"warnings,omitempty"`
	Success        bool     `json:"success"`
	Err            error    `json:"-"`
}

// Pipeline orchestrates one rebuild: redetect communities, recalculate
// importance, mark consumed changelog entries applied, and hand
// summarization off to the scheduler. A failure in any inline stage
// fails the rebuild; only summary scheduling degrades to a warning,
// since summarization runs outside the rebuild itself.
type Pipeline struct {
	rebuilds    store.RebuildStore
	communities CommunityRebuilder
	importance  ImportanceRecalculator
	changelog   ChangelogApplier
	scheduler   SummaryScheduler
}

// NewPipeline creates a Pipeline. scheduler may be nil, in which case
// summarization is simply not scheduled.
func NewPipeline(
	rebuilds store.RebuildStore,
	communities CommunityRebuilder,
	importance ImportanceRecalculator,
	changelog ChangelogApplier,
	scheduler SummaryScheduler,
) *Pipeline {
	return &Pipeline{
		rebuilds:    rebuilds,
		communities: communities,
		importance:  importance,
		changelog:   changelog,
		scheduler:   scheduler,
	}
}

// StartRebuild records a new pending rebuild invocation. At most one
// rebuild may be pending or running per campaign at a time.
func (p *Pipeline) StartRebuild(ctx context.Context, campaignID string, mode common.RebuildMode) (*common.Rebuild, error) {
	if mode != common.RebuildModeFull && mode != common.RebuildModeIncremental {
		return nil, fmt.Errorf("unknown rebuild mode %q", mode)
	}

	latest, err := p.rebuilds.GetLatestRebuildForCampaign(ctx, campaignID)
	if err != nil && !common.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check rebuild history: %w", err)
	}
	if latest != nil && (latest.Status == common.RebuildPending || latest.Status == common.RebuildRunning) {
		return nil, ErrRebuildInProgress
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rebuild := &common.Rebuild{
		ID:         id,
		CampaignID: campaignID,
		Mode:       mode,
		Status:     common.RebuildPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.rebuilds.CreateRebuild(ctx, rebuild); err != nil {
		return nil, fmt.Errorf("failed to create rebuild: %w", err)
	}

	logger.Info("[Rebuild] Queued", "rebuild_id", id, "campaign_id", campaignID, "mode", mode)
	return rebuild, nil
}

// Execute runs one previously created rebuild to completion and records
// its terminal state. A failed rebuild stays failed; retrying requires a
// new invocation.
func (p *Pipeline) Execute(ctx context.Context, rebuildID string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Errorf("rebuild panicked: %v", r)
			p.recordFailure(ctx, result.RebuildID, result.Err)
		}
	}()

	result = Result{RebuildID: rebuildID}

	rebuild, err := p.rebuilds.GetRebuildByID(ctx, rebuildID)
	if err != nil {
		result.Err = err
		return result
	}
	if rebuild == nil {
		result.Err = common.NewNotFound("rebuild", rebuildID)
		return result
	}
	result.CampaignID = rebuild.CampaignID
	result.Mode = string(rebuild.Mode)

	if rebuild.Status != common.RebuildPending {
		result.Err = fmt.Errorf("rebuild %s is %s, not pending", rebuildID, rebuild.Status)
		return result
	}
	if err := p.rebuilds.UpdateRebuildStatus(ctx, rebuildID, common.RebuildRunning, ""); err != nil {
		result.Err = fmt.Errorf("failed to mark rebuild running: %w", err)
		return result
	}

	unapplied, err := p.unappliedEntries(ctx, rebuild.CampaignID)
	if err != nil {
		result.Err = err
		p.recordFailure(ctx, rebuildID, err)
		return result
	}

	// an incremental rebuild with nothing new to fold in is a no-op
	if rebuild.Mode == common.RebuildModeIncremental && len(unapplied) == 0 {
		logger.Info("[Rebuild] Nothing to apply", "rebuild_id", rebuildID)
		result.Success = true
		p.recordSuccess(ctx, rebuildID)
		return result
	}

	communities, err := p.communities.RebuildCommunities(ctx, rebuild.CampaignID)
	if err != nil {
		result.Err = fmt.Errorf("community detection failed: %w", err)
		p.recordFailure(ctx, rebuildID, result.Err)
		return result
	}
	result.Communities = len(communities)

	scores, err := p.importance.RecalculateForCampaign(ctx, rebuild.CampaignID)
	if err != nil {
		result.Err = fmt.Errorf("importance recalculation failed: %w", err)
		p.recordFailure(ctx, rebuildID, result.Err)
		return result
	}
	result.ScoredEntities = len(scores)

	// entries count as applied only once both communities and importance
	// reflect them
	entryIDs := make([]string, len(unapplied))
	for i, e := range unapplied {
		entryIDs[i] = e.ID
	}
	if err := p.changelog.MarkApplied(ctx, rebuild.CampaignID, entryIDs); err != nil {
		result.Err = fmt.Errorf("marking changelog applied failed: %w", err)
		p.recordFailure(ctx, rebuildID, result.Err)
		return result
	}
	result.AppliedEntries = len(entryIDs)

	if p.scheduler != nil {
		if err := p.scheduler.ScheduleSummaries(ctx, rebuild.CampaignID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("scheduling summaries failed: %v", err))
			logger.Error("[Rebuild] Failed to schedule summaries", "rebuild_id", rebuildID, "err", err)
		}
	}

	result.Success = true
	p.recordSuccess(ctx, rebuildID)

	logger.Info("[Rebuild] Done",
		"rebuild_id", rebuildID,
		"campaign_id", rebuild.CampaignID,
		"communities", result.Communities,
		"scored", result.ScoredEntities,
		"applied", result.AppliedEntries,
		"warnings", len(result.Warnings),
	)
	return result
}

// Run creates and immediately executes a rebuild.
func (p *Pipeline) Run(ctx context.Context, campaignID string, mode common.RebuildMode) Result {
	rebuild, err := p.StartRebuild(ctx, campaignID, mode)
	if err != nil {
		return Result{CampaignID: campaignID, Mode: string(mode), Err: err}
	}
	return p.Execute(ctx, rebuild.ID)
}

// GetRebuild returns one rebuild invocation by id.
func (p *Pipeline) GetRebuild(ctx context.Context, rebuildID string) (*common.Rebuild, error) {
	rebuild, err := p.rebuilds.GetRebuildByID(ctx, rebuildID)
	if err != nil {
		return nil, err
	}
	if rebuild == nil {
		return nil, common.NewNotFound("rebuild", rebuildID)
	}
	return rebuild, nil
}

// GetLatestRebuild returns a campaign's most recent rebuild invocation.
func (p *Pipeline) GetLatestRebuild(ctx context.Context, campaignID string) (*common.Rebuild, error) {
	rebuild, err := p.rebuilds.GetLatestRebuildForCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if rebuild == nil {
		return nil, common.NewNotFound("rebuild", campaignID)
	}
	return rebuild, nil
}

func (p *Pipeline) unappliedEntries(ctx context.Context, campaignID string) ([]common.ChangelogEntry, error) {
	applied := false
	entries, err := p.changelog.ListEntries(ctx, campaignID, store.ChangelogFilter{Applied: &applied})
	if err != nil {
		return nil, fmt.Errorf("failed to list unapplied entries: %w", err)
	}
	return entries, nil
}

func (p *Pipeline) recordSuccess(ctx context.Context, rebuildID string) {
	if err := p.rebuilds.UpdateRebuildStatus(ctx, rebuildID, common.RebuildSucceeded, ""); err != nil {
		logger.Error("[Rebuild] Failed to record success", "rebuild_id", rebuildID, "err", err)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, rebuildID string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := p.rebuilds.UpdateRebuildStatus(ctx, rebuildID, common.RebuildFailed, msg); err != nil {
		logger.Error("[Rebuild] Failed to record failure", "rebuild_id", rebuildID, "err", err)
	}
}
