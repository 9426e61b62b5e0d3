package pgx

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func (s *Store) GetImportance(ctx context.Context, campaignID, entityID string) (*common.EntityImportance, error) {
	var out common.EntityImportance
	err := s.conn.QueryRow(ctx, `
		SELECT entity_id, campaign_id, pagerank, betweenness, hierarchy_level, importance_score, computed_at
		FROM entity_importance
		WHERE campaign_id = $1 AND entity_id = $2`,
		campaignID, entityID,
	).Scan(&out.EntityID, &out.CampaignID, &out.PageRank, &out.Betweenness, &out.HierarchyLevel, &out.Score, &out.ComputedAt)
	if err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("importance", entityID)
		}
		return nil, err
	}
	return &out, nil
}

const upsertImportanceSQL = `
	INSERT INTO entity_importance (entity_id, campaign_id, pagerank, betweenness, hierarchy_level, importance_score, computed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (campaign_id, entity_id) DO UPDATE
	SET pagerank         = EXCLUDED.pagerank,
	    betweenness      = EXCLUDED.betweenness,
	    hierarchy_level  = EXCLUDED.hierarchy_level,
	    importance_score = EXCLUDED.importance_score,
	    computed_at      = EXCLUDED.computed_at`

func (s *Store) UpsertImportance(ctx context.Context, record *common.EntityImportance) error {
	_, err := s.conn.Exec(ctx, upsertImportanceSQL,
		record.EntityID,
		record.CampaignID,
		record.PageRank,
		record.Betweenness,
		record.HierarchyLevel,
		record.Score,
		record.ComputedAt,
	)
	return err
}

func (s *Store) UpsertImportanceBatch(ctx context.Context, records []common.EntityImportance) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range records {
		r := &records[i]
		batch.Queue(upsertImportanceSQL,
			r.EntityID, r.CampaignID, r.PageRank, r.Betweenness, r.HierarchyLevel, r.Score, r.ComputedAt)
	}
	return s.conn.SendBatch(ctx, batch).Close()
}

func (s *Store) GetImportanceForCampaign(ctx context.Context, campaignID string) ([]common.EntityImportance, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT entity_id, campaign_id, pagerank, betweenness, hierarchy_level, importance_score, computed_at
		FROM entity_importance
		WHERE campaign_id = $1
		ORDER BY importance_score DESC, entity_id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.EntityImportance
	for rows.Next() {
		var r common.EntityImportance
		if err := rows.Scan(&r.EntityID, &r.CampaignID, &r.PageRank, &r.Betweenness, &r.HierarchyLevel, &r.Score, &r.ComputedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
