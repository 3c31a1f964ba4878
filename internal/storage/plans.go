package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"plantrack/internal/model"
)

// ActionPlanStore implements propagate.ActionPlanRepo.
type ActionPlanStore struct {
	db *sql.DB
}

func (s *ActionPlanStore) Insert(ctx context.Context, p model.ActionPlan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_plans(id, line_plan_id, status) VALUES(?,?,?)`,
		p.ID, p.LinePlanID, string(p.Status),
	)
	return err
}

func (s *ActionPlanStore) ByID(ctx context.Context, id string) (model.ActionPlan, error) {
	var p model.ActionPlan
	var st string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, line_plan_id, status FROM action_plans WHERE id = ?`, id).
		Scan(&p.ID, &p.LinePlanID, &st)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ActionPlan{}, fmt.Errorf("action plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ActionPlan{}, err
	}
	p.Status = model.Status(st)
	return p, nil
}

func (s *ActionPlanStore) AllByLinePlan(ctx context.Context, linePlanID string) ([]model.ActionPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, line_plan_id, status FROM action_plans WHERE line_plan_id = ? ORDER BY id`,
		linePlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActionPlan
	for rows.Next() {
		var p model.ActionPlan
		var st string
		if err := rows.Scan(&p.ID, &p.LinePlanID, &st); err != nil {
			return nil, err
		}
		p.Status = model.Status(st)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ActionPlanStore) UpdateStatus(ctx context.Context, id string, st model.Status) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE action_plans SET status = ? WHERE id = ?`, string(st), id)
	return err
}

// LinePlanStore implements propagate.LinePlanRepo.
type LinePlanStore struct {
	db *sql.DB
}

func (s *LinePlanStore) Insert(ctx context.Context, lp model.LinePlan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO line_plans(id, organization_id, status) VALUES(?,?,?)`,
		lp.ID, lp.OrganizationID, string(lp.Status),
	)
	return err
}

func (s *LinePlanStore) ByID(ctx context.Context, id string) (model.LinePlan, error) {
	var lp model.LinePlan
	var st string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, status FROM line_plans WHERE id = ?`, id).
		Scan(&lp.ID, &lp.OrganizationID, &st)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LinePlan{}, fmt.Errorf("line plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.LinePlan{}, err
	}
	lp.Status = model.Status(st)
	return lp, nil
}

func (s *LinePlanStore) UpdateStatus(ctx context.Context, id string, st model.Status) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE line_plans SET status = ? WHERE id = ?`, string(st), id)
	return err
}
