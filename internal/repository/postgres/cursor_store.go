package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"invoice_router/internal/repository"

	_ "github.com/lib/pq"
)

var _ repository.CursorStore = (*CursorStore)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS dispatch_cursors (
		team_id    TEXT PRIMARY KEY,
		cursor     BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// CursorStore keeps round-robin cursors in PostgreSQL. The upsert takes a
// row lock, so concurrent advances for one team serialise in the database.
type CursorStore struct {
	db *sql.DB
}

func NewCursorStore(db *sql.DB) *CursorStore {
	return &CursorStore{db: db}
}

func Open(dsn string) (*CursorStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return &CursorStore{db: db}, nil
}

func (s *CursorStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create dispatch_cursors: %w", err)
	}
	return nil
}

func (s *CursorStore) Advance(ctx context.Context, teamID string) (uint64, error) {
	query := `
		INSERT INTO dispatch_cursors (team_id, cursor, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (team_id) DO UPDATE SET
			cursor = dispatch_cursors.cursor + 1,
			updated_at = NOW()
		RETURNING cursor
	`
	var next int64
	if err := s.db.QueryRowContext(ctx, query, teamID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to advance cursor for team %s: %w", teamID, err)
	}
	if next < 1 {
		return 0, fmt.Errorf("cursor for team %s is corrupt: %d", teamID, next)
	}
	return uint64(next - 1), nil
}

func (s *CursorStore) Reset(ctx context.Context, teamID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM dispatch_cursors WHERE team_id = $1", teamID)
	if err != nil {
		return fmt.Errorf("failed to reset cursor for team %s: %w", teamID, err)
	}
	return nil
}

func (s *CursorStore) Close() error {
	return s.db.Close()
}
