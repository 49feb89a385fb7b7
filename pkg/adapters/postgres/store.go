// Package postgres stores snapshots in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultTable = "rux_snapshots"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements ports.SnapshotStore on PostgreSQL.
// Each snapshot is one row; the slices are kept as JSONB.
type Store struct {
	db    *sqlx.DB
	table string
}

type Option func(*Store)

// WithTable overrides the table name. Names that are not plain SQL
// identifiers are ignored.
func WithTable(table string) Option {
	return func(s *Store) {
		if identifier.MatchString(table) {
			s.table = table
		}
	}
}

// Open connects to dsn with the lib/pq driver.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the snapshot table and its ordering index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			slices JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_saved_at_idx ON %s (saved_at)`, s.table, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}

type row struct {
	ID      string    `db:"id"`
	Slices  []byte    `db:"slices"`
	SavedAt time.Time `db:"saved_at"`
}

// Save upserts the snapshot.
func (s *Store) Save(ctx context.Context, id string, snapshot *domain.Snapshot) error {
	slices, err := json.Marshal(snapshot.Slices)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	savedAt := snapshot.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, slices, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET slices = EXCLUDED.slices, saved_at = EXCLUDED.saved_at
	`, s.table), id, slices, savedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", id, err)
	}
	return nil
}

// Load reads the snapshot row for id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	var r row
	err := s.db.GetContext(ctx, &r, fmt.Sprintf(`SELECT id, slices, saved_at FROM %s WHERE id = $1`, s.table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}

	snap := &domain.Snapshot{ID: r.ID, SavedAt: r.SavedAt.UTC()}
	if err := json.Unmarshal(r.Slices, &snap.Slices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the row for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	return err
}

// List returns the IDs oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, fmt.Sprintf(`SELECT id FROM %s ORDER BY saved_at, id`, s.table)); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return ids, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
