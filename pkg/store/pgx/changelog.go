package pgx

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fatecrafters/chronicle/pkg/common"
	"github.com/fatecrafters/chronicle/pkg/store"
)

func (s *Store) CreateEntry(ctx context.Context, entry *common.ChangelogEntry) (*common.ChangelogEntry, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, err
	}

	stored := *entry
	err = s.conn.QueryRow(ctx, `
		INSERT INTO changelog_entries
			(id, campaign_id, campaign_session_id, event_time, payload, impact_score, applied_to_graph, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, false, $7)
		RETURNING created_at`,
		entry.ID,
		entry.CampaignID,
		entry.SessionID,
		entry.Timestamp,
		payload,
		entry.ImpactScore,
		time.Now().UTC(),
	).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, err
	}
	stored.AppliedToGraph = false
	return &stored, nil
}

func (s *Store) ListEntriesForCampaign(ctx context.Context, campaignID string, filter store.ChangelogFilter) ([]common.ChangelogEntry, error) {
	var (
		where = []string{"campaign_id = $1"}
		args  = []any{campaignID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.SessionID != "" {
		where = append(where, "campaign_session_id = "+arg(filter.SessionID))
	}
	if !filter.From.IsZero() {
		where = append(where, "event_time >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "event_time <= "+arg(filter.To))
	}
	if filter.Applied != nil {
		where = append(where, "applied_to_graph = "+arg(*filter.Applied))
	}

	sql := `
		SELECT id, campaign_id, COALESCE(campaign_session_id, ''), event_time, payload, impact_score, applied_to_graph, created_at
		FROM changelog_entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY event_time, seq`
	if filter.Limit > 0 {
		sql += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		sql += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.ChangelogEntry
	for rows.Next() {
		var (
			e       common.ChangelogEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.SessionID, &e.Timestamp, &payload, &e.ImpactScore, &e.AppliedToGraph, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkEntriesApplied(ctx context.Context, campaignID string, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := s.conn.Exec(ctx, `
		UPDATE changelog_entries
		SET applied_to_graph = true
		WHERE campaign_id = $1 AND id = ANY($2)`,
		campaignID, entryIDs,
	)
	return err
}

func (s *Store) DeleteEntries(ctx context.Context, campaignID string, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := s.conn.Exec(ctx, `
		DELETE FROM changelog_entries
		WHERE campaign_id = $1 AND id = ANY($2)`,
		campaignID, entryIDs,
	)
	return err
}
