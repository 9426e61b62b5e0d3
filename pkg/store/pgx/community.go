package pgx

import (
	"context"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func (s *Store) DeleteCommunitiesByCampaign(ctx context.Context, campaignID string) error {
	// summaries cascade with their communities
	_, err := s.conn.Exec(ctx, `
		DELETE FROM communities
		WHERE campaign_id = $1`,
		campaignID,
	)
	return err
}

func (s *Store) CreateCommunity(ctx context.Context, community *common.Community) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO communities (id, campaign_id, level, parent_community_id, entity_ids, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		community.ID,
		community.CampaignID,
		community.Level,
		community.ParentID,
		community.EntityIDs,
		community.CreatedAt,
	)
	return err
}

const communityColumns = `id, campaign_id, level, COALESCE(parent_community_id, ''), entity_ids, created_at`

func scanCommunity(row interface{ Scan(...any) error }) (common.Community, error) {
	var c common.Community
	err := row.Scan(&c.ID, &c.CampaignID, &c.Level, &c.ParentID, &c.EntityIDs, &c.CreatedAt)
	return c, err
}

func (s *Store) GetCommunityByID(ctx context.Context, communityID string) (*common.Community, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE id = $1`,
		communityID,
	)
	c, err := scanCommunity(row)
	if err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("community", communityID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCommunitiesByCampaign(ctx context.Context, campaignID string) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE campaign_id = $1
		ORDER BY level DESC, id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) FindCommunitiesContainingEntity(ctx context.Context, campaignID, entityID string) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE campaign_id = $1 AND $2 = ANY(entity_ids)
		ORDER BY level, id`,
		campaignID, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetChildCommunities(ctx context.Context, communityID string) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE parent_community_id = $1
		ORDER BY id`,
		communityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
