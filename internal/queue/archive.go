package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/worldstate"
)

// defaultArchiveAge is how old applied entries must be before archival
// when the message does not name a cutoff.
const defaultArchiveAge = 90 * 24 * time.Hour

// ProcessArchiveMessage moves a campaign's old applied changelog entries
// into cold storage.
func ProcessArchiveMessage(
	ctx context.Context,
	archiver *worldstate.Archiver,
	msgBody string,
) error {
	var data ArchiveMsg
	if err := json.Unmarshal([]byte(msgBody), &data); err != nil {
		return fmt.Errorf("invalid archive message: %w", err)
	}
	if data.CampaignID == "" {
		return errors.New("archive message missing campaign id")
	}

	before := data.Before
	if before.IsZero() {
		before = time.Now().UTC().Add(-defaultArchiveAge)
	}

	archives, err := archiver.ArchiveChangelogs(ctx, data.CampaignID, before)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Archived changelog batches",
		"campaign_id", data.CampaignID,
		"batches", len(archives),
	)
	return nil
}
