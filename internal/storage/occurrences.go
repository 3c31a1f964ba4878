package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"plantrack/internal/model"
)

// FrequencyStore persists frequencies with their cron rules as a JSON
// array. Frequencies are immutable after creation, so there is no
// update path.
type FrequencyStore struct {
	db *sql.DB
}

func (s *FrequencyStore) Insert(ctx context.Context, f model.Frequency) error {
	rules, err := json.Marshal(f.CronRules)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO frequencies(id, name, cron_rules) VALUES(?,?,?)`,
		f.ID, f.Name, string(rules),
	)
	return err
}

func (s *FrequencyStore) ByID(ctx context.Context, id string) (model.Frequency, error) {
	var f model.Frequency
	var rules string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, cron_rules FROM frequencies WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &rules)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Frequency{}, fmt.Errorf("frequency %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Frequency{}, err
	}
	if err := json.Unmarshal([]byte(rules), &f.CronRules); err != nil {
		return model.Frequency{}, fmt.Errorf("frequency %s: bad cron_rules: %w", id, err)
	}
	return f, nil
}

type DefinitionStore struct {
	db *sql.DB
}

func (s *DefinitionStore) Insert(ctx context.Context, d model.Definition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO definitions(id, name, frequency_id) VALUES(?,?,?)`,
		d.ID, d.Name, d.FrequencyID,
	)
	return err
}

func (s *DefinitionStore) List(ctx context.Context) ([]model.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, frequency_id FROM definitions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Definition
	for rows.Next() {
		var d model.Definition
		if err := rows.Scan(&d.ID, &d.Name, &d.FrequencyID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// OccurrenceStore persists generated task occurrences. Rows are never
// deleted; re-generation over an overlapping window is absorbed by the
// (definition_id, available_from) uniqueness constraint.
type OccurrenceStore struct {
	db *sql.DB
}

// BulkInsert inserts drafts, silently skipping ones already present for
// the same definition and start instant. Returns how many were new.
func (s *OccurrenceStore) BulkInsert(ctx context.Context, occs []model.TaskOccurrence) (int, error) {
	if len(occs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO task_occurrences(definition_id, definition_name, frequency_id, available_from, available_to, status, created_by, updated_by)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(definition_id, available_from) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, o := range occs {
		res, err := stmt.ExecContext(ctx,
			o.DefinitionID, o.DefinitionName, o.FrequencyID,
			fmtTime(o.AvailableFrom), fmtTime(o.AvailableTo),
			string(o.Status), o.CreatedBy, o.UpdatedBy,
		)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListInWindow returns occurrences whose start lies in [from, to),
// chronological, joined with their definition name.
func (s *OccurrenceStore) ListInWindow(ctx context.Context, from, to time.Time) ([]model.TaskOccurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, definition_id, definition_name, frequency_id, available_from, available_to, status, created_by, updated_by
		 FROM task_occurrences WHERE available_from >= ? AND available_from < ?
		 ORDER BY available_from, definition_id`,
		fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// ListByDefinition returns the full occurrence history of one
// definition in one query, so enablement sees a consistent snapshot.
func (s *OccurrenceStore) ListByDefinition(ctx context.Context, definitionID string) ([]model.TaskOccurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, definition_id, definition_name, frequency_id, available_from, available_to, status, created_by, updated_by
		 FROM task_occurrences WHERE definition_id = ? ORDER BY available_from`,
		definitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

func collectOccurrences(rows *sql.Rows) ([]model.TaskOccurrence, error) {
	var out []model.TaskOccurrence
	for rows.Next() {
		var o model.TaskOccurrence
		var id int64
		var st, from, to string
		if err := rows.Scan(&id, &o.DefinitionID, &o.DefinitionName, &o.FrequencyID, &from, &to, &st, &o.CreatedBy, &o.UpdatedBy); err != nil {
			return nil, err
		}
		o.ID = strconv.FormatInt(id, 10)
		o.Status = model.OccurrenceStatus(st)
		var err error
		if o.AvailableFrom, err = parseTime(from); err != nil {
			return nil, fmt.Errorf("occurrence %s: bad available_from: %w", o.ID, err)
		}
		if o.AvailableTo, err = parseTime(to); err != nil {
			return nil, fmt.Errorf("occurrence %s: bad available_to: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
