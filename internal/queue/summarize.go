package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/graph"
	"github.com/fatecrafters/chronicle/pkg/logger"
)

// ProcessSummaryMessage generates summaries for every community of the
// campaign named in the message. Missing AI credentials are terminal:
// retrying cannot fix configuration, so the message is dropped with an
// error log instead of cycling through the retry queue.
func ProcessSummaryMessage(
	ctx context.Context,
	summaries *graph.SummaryService,
	msgBody string,
) error {
	var data SummaryMsg
	if err := json.Unmarshal([]byte(msgBody), &data); err != nil {
		return fmt.Errorf("invalid summary message: %w", err)
	}
	if data.CampaignID == "" {
		return errors.New("summary message missing campaign id")
	}

	generated, err := summaries.GenerateSummariesForCommunities(ctx, data.CampaignID)
	if err != nil {
		if errors.Is(err, common.ErrMissingCredential) {
			logger.Error("[Queue] Summaries skipped, no AI credentials configured", "campaign_id", data.CampaignID)
			return nil
		}
		return err
	}

	logger.Info("[Queue] Summaries generated", "campaign_id", data.CampaignID, "count", len(generated))
	return nil
}
