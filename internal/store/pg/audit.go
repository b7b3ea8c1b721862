package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"tradeboard.org/internal/audit"
	"tradeboard.org/internal/ids"
)

var _ audit.Appender = (*Store)(nil)

// AppendAuditEntry inserts one append-only audit record. There is no update
// or delete path for audit_logs anywhere in the repo.
func (s *Store) AppendAuditEntry(ctx context.Context, entry *audit.Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	details := []byte("{}")
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, user_id, action_type, resource_type, resource_id, details, ip_address, user_agent, created_at)
		values ($1, $2, $3, $4, nullif($5, ''), $6, $7, $8, $9)
	`, entry.ID, entry.UserID, entry.ActionType, entry.ResourceType, entry.ResourceID,
		details, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	return err
}

// ListAuditEntries returns one page ordered by created_at descending plus the
// exact total count for pagination.
func (s *Store) ListAuditEntries(ctx context.Context, limit, offset int) ([]audit.Entry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from audit_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, action_type, resource_type, coalesce(resource_id, ''),
		       details, coalesce(ip_address, ''), coalesce(user_agent, ''), created_at
		from audit_logs
		order by created_at desc
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			rawDetails []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ActionType, &e.ResourceType, &e.ResourceID,
			&rawDetails, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(rawDetails) > 0 {
			if err := json.Unmarshal(rawDetails, &e.Details); err != nil {
				return nil, 0, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
