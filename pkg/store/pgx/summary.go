package pgx

import (
	"context"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func (s *Store) GetSummaryByCommunityID(ctx context.Context, communityID string) (*common.CommunitySummary, error) {
	var out common.CommunitySummary
	err := s.conn.QueryRow(ctx, `
		SELECT id, community_id, level, summary, key_entities, generated_at, updated_at
		FROM community_summaries
		WHERE community_id = $1`,
		communityID,
	).Scan(&out.ID, &out.CommunityID, &out.Level, &out.Summary, &out.KeyEntities, &out.GeneratedAt, &out.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("summary", communityID)
		}
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreateSummary(ctx context.Context, summary *common.CommunitySummary) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO community_summaries (id, community_id, level, summary, key_entities, generated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		summary.ID,
		summary.CommunityID,
		summary.Level,
		summary.Summary,
		summary.KeyEntities,
		summary.GeneratedAt,
		summary.UpdatedAt,
	)
	return err
}

func (s *Store) DeleteSummariesByCommunity(ctx context.Context, communityID string) error {
	_, err := s.conn.Exec(ctx, `
		DELETE FROM community_summaries
		WHERE community_id = $1`,
		communityID,
	)
	return err
}

func (s *Store) ListSummariesByCampaign(ctx context.Context, campaignID string) ([]common.CommunitySummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT cs.id, cs.community_id, cs.level, cs.summary, cs.key_entities, cs.generated_at, cs.updated_at
		FROM community_summaries cs
		JOIN communities c ON c.id = cs.community_id
		WHERE c.campaign_id = $1
		ORDER BY cs.level DESC, cs.id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.CommunitySummary
	for rows.Next() {
		var cs common.CommunitySummary
		if err := rows.Scan(&cs.ID, &cs.CommunityID, &cs.Level, &cs.Summary, &cs.KeyEntities, &cs.GeneratedAt, &cs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
