package pgx

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/fatecrafters/chronicle/pkg/common"
)

func (s *Store) CreateArchive(ctx context.Context, archive *common.ChangelogArchive, embedding []float32) error {
	var vec any
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		vec = v
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO changelog_archives
			(id, campaign_id, campaign_session_id, from_time, to_time, entry_count, storage_key, summary, embedding, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
		archive.ID,
		archive.CampaignID,
		archive.SessionID,
		archive.FromTime,
		archive.ToTime,
		archive.EntryCount,
		archive.StorageKey,
		archive.Summary,
		vec,
		archive.CreatedAt,
	)
	return err
}

const archiveColumns = `id, campaign_id, COALESCE(campaign_session_id, ''), from_time, to_time, entry_count, storage_key, summary, created_at`

func (s *Store) GetArchiveByID(ctx context.Context, archiveID string) (*common.ChangelogArchive, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+archiveColumns+`
		FROM changelog_archives
		WHERE id = $1`,
		archiveID,
	)
	var a common.ChangelogArchive
	if err := row.Scan(&a.ID, &a.CampaignID, &a.SessionID, &a.FromTime, &a.ToTime, &a.EntryCount, &a.StorageKey, &a.Summary, &a.CreatedAt); err != nil {
		if noRows(err) {
			return nil, common.NewNotFound("archive", archiveID)
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListArchivesForCampaign(ctx context.Context, campaignID string, to time.Time) ([]common.ChangelogArchive, error) {
	sql := `
		SELECT ` + archiveColumns + `
		FROM changelog_archives
		WHERE campaign_id = $1`
	args := []any{campaignID}
	if !to.IsZero() {
		sql += " AND from_time <= $2"
		args = append(args, to)
	}
	sql += " ORDER BY from_time"

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.ChangelogArchive
	for rows.Next() {
		var a common.ChangelogArchive
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.SessionID, &a.FromTime, &a.ToTime, &a.EntryCount, &a.StorageKey, &a.Summary, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SearchArchives(ctx context.Context, campaignID string, embedding []float32, limit int) ([]common.ChangelogArchive, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+archiveColumns+`
		FROM changelog_archives
		WHERE campaign_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`,
		campaignID, pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.ChangelogArchive
	for rows.Next() {
		var a common.ChangelogArchive
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.SessionID, &a.FromTime, &a.ToTime, &a.EntryCount, &a.StorageKey, &a.Summary, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
