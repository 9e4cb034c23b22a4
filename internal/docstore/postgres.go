package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"onpaku/pkg/platform/sentinel"
)

// PostgresStore persists collections in a single JSONB documents table,
// keyed by (collection, id). Merge and Update use the JSONB concatenation
// operator so partial writes happen server-side.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the documents table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("migrate documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Collection(name string) Collection {
	return &postgresCollection{db: s.db, name: name}
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type postgresCollection struct {
	db   *sql.DB
	name string
}

func (c *postgresCollection) Get(ctx context.Context, id string) (Document, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (c *postgresCollection) Set(ctx context.Context, id string, doc Document, opts SetOptions) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`
	if opts.Merge {
		query = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data`
	}
	if _, err := c.db.ExecContext(ctx, query, c.name, id, raw); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (c *postgresCollection) Update(ctx context.Context, id string, fields Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	result, err := c.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3 WHERE collection = $1 AND id = $2`,
		c.name, id, raw)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Mutate runs fn inside a transaction holding a row lock, so concurrent
// mutations of the same document serialize instead of losing updates.
func (c *postgresCollection) Mutate(ctx context.Context, id string, fn func(Document) (Document, error)) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mutate document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current Document
	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		c.name, id).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fn decides what a missing document means.
	case err != nil:
		return fmt.Errorf("mutate document: %w", err)
	default:
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("mutate document: %w", err)
		}
	}

	out, err := fn(current)
	if err != nil {
		return err
	}
	outRaw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("mutate document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		c.name, id, outRaw); err != nil {
		return fmt.Errorf("mutate document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mutate document: %w", err)
	}
	return nil
}

func (c *postgresCollection) Query(ctx context.Context, filters ...Filter) ([]Snapshot, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1`
	args := []any{c.name}
	for _, f := range filters {
		query += fmt.Sprintf(" AND data->>%s = $%d", pq.QuoteLiteral(f.Field), len(args)+1)
		args = append(args, fmt.Sprintf("%v", f.Value))
	}
	query += ` ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var results []Snapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}
		results = append(results, Snapshot{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return results, nil
}
