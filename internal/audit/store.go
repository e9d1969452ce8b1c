package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evdealer/contractedit/internal/db"
)

// Store manages persistence of save audit entries.
type Store struct {
	db *db.DB
}

// NewStore creates a new audit store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create records a save attempt.
func (s *Store) Create(ctx context.Context, e Entry) (*Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	if e.Actor == "" {
		e.Actor = "system"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO save_audit (id, template_id, session_id, actor, outcome, detail, body_bytes, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TemplateID, e.SessionID, e.Actor, e.Outcome, e.Detail, e.BodyBytes, e.DurationMS, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting audit entry: %w", err)
	}
	return &e, nil
}

// GetByID retrieves an entry by its ID.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, template_id, session_id, actor, outcome, detail, body_bytes, duration_ms, created_at
		 FROM save_audit WHERE id = ?`, id,
	).Scan(&e.ID, &e.TemplateID, &e.SessionID, &e.Actor, &e.Outcome, &e.Detail, &e.BodyBytes, &e.DurationMS, &e.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting audit entry: %w", err)
	}
	return &e, nil
}

// List returns entries matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT id, template_id, session_id, actor, outcome, detail, body_bytes, duration_ms, created_at
		 FROM save_audit WHERE 1=1`
	args := []interface{}{}

	if filter.TemplateID != "" {
		query += " AND template_id = ?"
		args = append(args, filter.TemplateID)
	}
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TemplateID, &e.SessionID, &e.Actor, &e.Outcome, &e.Detail, &e.BodyBytes, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByOutcome returns how many entries exist per outcome.
func (s *Store) CountByOutcome(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM save_audit GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}
	defer rows.Close()

	counts := map[Outcome]int{}
	for rows.Next() {
		var o Outcome
		var n int
		if err := rows.Scan(&o, &n); err != nil {
			return nil, fmt.Errorf("scanning audit count: %w", err)
		}
		counts[o] = n
	}
	return counts, rows.Err()
}
