package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plantrack/internal/model"
)

// ActionStore implements propagate.ActionRepo.
type ActionStore struct {
	db *sql.DB
}

func (s *ActionStore) Insert(ctx context.Context, a model.Action) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions(id, action_plan_id, status, due_date) VALUES(?,?,?,?)`,
		a.ID, a.ActionPlanID, string(a.Status), fmtTime(a.DueDate),
	)
	return err
}

func (s *ActionStore) ByID(ctx context.Context, id string) (model.Action, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, action_plan_id, status, due_date FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Action{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *ActionStore) ByIDs(ctx context.Context, ids []string) ([]model.Action, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_plan_id, status, due_date FROM actions WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActions(rows)
}

func (s *ActionStore) AllByActionPlan(ctx context.Context, actionPlanID string) ([]model.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_plan_id, status, due_date FROM actions WHERE action_plan_id = ? ORDER BY id`,
		actionPlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActions(rows)
}

func (s *ActionStore) Expired(ctx context.Context, before time.Time) ([]model.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_plan_id, status, due_date FROM actions
		 WHERE status = ? AND due_date < ? ORDER BY id`,
		string(model.StatusInProgress), fmtTime(before))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActions(rows)
}

func (s *ActionStore) UpdateStatusMany(ctx context.Context, ids []string, st model.Status) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(st))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE actions SET status = ? WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(r rowScanner) (model.Action, error) {
	var a model.Action
	var st, due string
	if err := r.Scan(&a.ID, &a.ActionPlanID, &st, &due); err != nil {
		return model.Action{}, err
	}
	a.Status = model.Status(st)
	t, err := parseTime(due)
	if err != nil {
		return model.Action{}, fmt.Errorf("action %s: bad due_date: %w", a.ID, err)
	}
	a.DueDate = t
	return a, nil
}

func collectActions(rows *sql.Rows) ([]model.Action, error) {
	var out []model.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
