package pgx

import (
	"context"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func (s *Store) CreateRebuild(ctx context.Context, rebuild *common.Rebuild) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO rebuilds (id, campaign_id, mode, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rebuild.ID,
		rebuild.CampaignID,
		string(rebuild.Mode),
		string(rebuild.Status),
		rebuild.Error,
		rebuild.CreatedAt,
		rebuild.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateRebuildStatus(ctx context.Context, rebuildID string, status common.RebuildState, errMessage string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE rebuilds
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1`,
		rebuildID, string(status), errMessage, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("rebuild", rebuildID)
	}
	return nil
}

func (s *Store) GetRebuildByID(ctx context.Context, rebuildID string) (*common.Rebuild, error) {
	var r common.Rebuild
	err := s.conn.QueryRow(ctx, `
		SELECT id, campaign_id, mode, status, error, created_at, updated_at
		FROM rebuilds
		WHERE id = $1`,
		rebuildID,
	).Scan(&r.ID, &r.CampaignID, &r.Mode, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("rebuild", rebuildID)
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetLatestRebuildForCampaign(ctx context.Context, campaignID string) (*common.Rebuild, error) {
	var r common.Rebuild
	err := s.conn.QueryRow(ctx, `
		SELECT id, campaign_id, mode, status, error, created_at, updated_at
		FROM rebuilds
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		campaignID,
	).Scan(&r.ID, &r.CampaignID, &r.Mode, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("rebuild", campaignID)
		}
		return nil, err
	}
	return &r, nil
}
