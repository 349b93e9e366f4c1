package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/workflow"

	_ "modernc.org/sqlite"
)

// Store is a ports.WorkflowStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver; Open returns one using
// modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

var _ ports.WorkflowStore = (*Store)(nil)

// Open opens the database at dsn and prepares the schema.
// The pool is limited to one connection so ":memory:" databases are shared.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the required schema in db and returns a Store.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			steps TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	)
	return err
}

// Save creates or replaces the workflow row.
func (s *Store) Save(ctx context.Context, rec *ports.StoredWorkflow) error {
	if rec.ID == "" {
		return fmt.Errorf("workflow id cannot be empty")
	}
	steps, err := json.Marshal(rec.Workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, steps, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, steps = excluded.steps, updated_at = excluded.updated_at`,
		rec.ID,
		rec.Name,
		string(steps),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Load retrieves a workflow by id.
func (s *Store) Load(ctx context.Context, id string) (*ports.StoredWorkflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, steps, updated_at FROM workflows WHERE id = ?`, id)

	var name, steps, updated string
	if err := row.Scan(&name, &steps, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, err
	}

	rec := &ports.StoredWorkflow{ID: id, Name: name}
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(steps), &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}
	rec.Workflow = wf
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at for workflow %s: %w", id, err)
	}
	rec.UpdatedAt = t
	return rec, nil
}

// Delete removes the workflow row.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	return err
}

// List returns the stored ids in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workflows ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
