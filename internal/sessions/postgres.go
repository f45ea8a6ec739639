package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool}
}

// CreateSession inserts a recording session
func (s *PostgresStore) CreateSession(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO recording_sessions (id, script_id, contributor_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.ScriptID,
		rec.ContributorID,
		rec.ExpiresAt,
		rec.CreatedAt,
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a recording session by ID
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, script_id, contributor_id, expires_at, created_at
		FROM recording_sessions
		WHERE id = $1
	`

	rec := &Record{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.ScriptID,
		&rec.ContributorID,
		&rec.ExpiresAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return rec, nil
}
