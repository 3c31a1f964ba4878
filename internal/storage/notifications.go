package storage

import (
	"context"
	"database/sql"
	"time"

	"plantrack/internal/model"
)

// NotificationStore persists pending notification rows. Rendering and
// transport belong to the surrounding service; this core only records
// what happened and hands rows to the delivery worker.
type NotificationStore struct {
	db *sql.DB
}

func (s *NotificationStore) CreateMany(ctx context.Context, entries []model.NotificationEntry, cause model.NotificationCause) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notifications(action_id, action_plan_id, cause, created_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := fmtTime(time.Now())
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ActionID, e.ActionPlanID, string(cause), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *NotificationStore) ListUndelivered(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_id, action_plan_id, cause, created_at
		 FROM notifications WHERE delivered_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var cause, created string
		if err := rows.Scan(&n.ID, &n.ActionID, &n.ActionPlanID, &cause, &created); err != nil {
			return nil, err
		}
		n.Cause = model.NotificationCause(cause)
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) MarkDelivered(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, fmtTime(at))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET delivered_at = ? WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	return err
}
