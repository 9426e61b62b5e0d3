package pgx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func (s *Store) ListEntitiesByCampaign(ctx context.Context, campaignID string) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, campaign_id, entity_type, name, content, metadata, created_at, updated_at
		FROM entities
		WHERE campaign_id = $1
		ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Entity
	for rows.Next() {
		var (
			e        common.Entity
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.Type, &e.Name, &e.Content, &metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEntityByID(ctx context.Context, campaignID, entityID string) (*common.Entity, error) {
	var (
		e        common.Entity
		metadata []byte
	)
	err := s.conn.QueryRow(ctx, `
		SELECT id, campaign_id, entity_type, name, content, metadata, created_at, updated_at
		FROM entities
		WHERE campaign_id = $1 AND id = $2`,
		campaignID, entityID,
	).Scan(&e.ID, &e.CampaignID, &e.Type, &e.Name, &e.Content, &metadata, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("entity", entityID)
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (s *Store) GetRelationshipsForEntity(ctx context.Context, campaignID, entityID string) ([]common.Relationship, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, campaign_id, from_entity_id, to_entity_id, relationship_type, strength, created_at, updated_at
		FROM relationships
		WHERE campaign_id = $1 AND (from_entity_id = $2 OR to_entity_id = $2)
		ORDER BY id`,
		campaignID, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Relationship
	for rows.Next() {
		var r common.Relationship
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.FromID, &r.ToID, &r.Type, &r.Strength, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetMinimalEntitiesForCampaign(ctx context.Context, campaignID string) ([]common.EntityRef, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, name, entity_type
		FROM entities
		WHERE campaign_id = $1
		ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.EntityRef
	for rows.Next() {
		var e common.EntityRef
		if err := rows.Scan(&e.ID, &e.Name, &e.Type); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetMinimalRelationshipsForCampaign(ctx context.Context, campaignID string) ([]common.RelationshipRef, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT from_entity_id, to_entity_id, strength
		FROM relationships
		WHERE campaign_id = $1
		ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.RelationshipRef
	for rows.Next() {
		var r common.RelationshipRef
		if err := rows.Scan(&r.FromID, &r.ToID, &r.Strength); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEntity(ctx context.Context, entity *common.Entity) error {
	metadata, err := json.Marshal(entity.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.conn.Exec(ctx, `
		UPDATE entities
		SET name = $3, content = $4, metadata = $5, updated_at = $6
		WHERE campaign_id = $1 AND id = $2`,
		entity.CampaignID, entity.ID, entity.Name, entity.Content, metadata, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("entity", entity.ID)
	}
	return nil
}
