package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatecrafters/chronicle/pkg/leaselock"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/rebuild"
)

// ProcessRebuildMessage executes one rebuild under a per-campaign lease so
// two workers never rebuild the same campaign concurrently. A busy lease
// is returned as an error, which sends the message through the retry
// queue.
func ProcessRebuildMessage(
	ctx context.Context,
	locks *leaselock.Client,
	pipeline *rebuild.Pipeline,
	msgBody string,
) error {
	var data RebuildMsg
	if err := json.Unmarshal([]byte(msgBody), &data); err != nil {
		return fmt.Errorf("invalid rebuild message: %w", err)
	}
	if data.RebuildID == "" || data.CampaignID == "" {
		return errors.New("rebuild message missing ids")
	}

	logger.Info("[Queue] Executing rebuild", "rebuild_id", data.RebuildID, "campaign_id", data.CampaignID)

	err := locks.WithLease(ctx, "rebuild:"+data.CampaignID, leaselock.Options{
		TTL: 10 * time.Minute,
	}, func(leaseCtx context.Context) error {
		result := pipeline.Execute(leaseCtx, data.RebuildID)
		if !result.Success {
			// terminal: the rebuild row is already marked failed, so a
			// redelivery would be rejected as non-pending anyway
			logger.Error("[Queue] Rebuild failed",
				"rebuild_id", data.RebuildID,
				"err", result.Err,
			)
			return nil
		}
		for _, warning := range result.Warnings {
			logger.Warn("[Queue] Rebuild warning", "rebuild_id", data.RebuildID, "warning", warning)
		}
		return nil
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return fmt.Errorf("campaign %s is locked by another rebuild: %w", data.CampaignID, err)
	}
	return err
}
