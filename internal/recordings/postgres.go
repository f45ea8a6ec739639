package recordings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const recordingColumns = `
	id, script_id, session_id, contributor_id, object_key, duration_seconds,
	format, file_size_bytes, sample_rate, channels, bit_depth,
	idempotency_key, checksum, created_at
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool}
}

// CreateRecording inserts a recording row. Unique indexes on the idempotency
// key and on (script_id, checksum) turn a racing duplicate into ErrDuplicate.
func (s *PostgresStore) CreateRecording(ctx context.Context, rec *Recording) error {
	query := `INSERT INTO recordings (` + recordingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.ScriptID,
		rec.SessionID,
		rec.ContributorID,
		rec.ObjectKey,
		rec.DurationSeconds,
		rec.Format,
		rec.FileSizeBytes,
		rec.SampleRate,
		rec.Channels,
		rec.BitDepth,
		rec.IdempotencyKey,
		rec.Checksum,
		rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to create recording: %w", err)
	}

	return nil
}

// GetRecording retrieves a recording by ID
func (s *PostgresStore) GetRecording(ctx context.Context, id uuid.UUID) (*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`

	rec, err := scanRecording(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	return rec, nil
}

// FindDuplicate looks a previous upload up by idempotency key, then by
// script and content checksum
func (s *PostgresStore) FindDuplicate(ctx context.Context, idempotencyKey, scriptID, checksum string) (*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE ($1 <> '' AND idempotency_key = $1)
		   OR ($3 <> '' AND script_id = $2 AND checksum = $3)
		ORDER BY created_at
		LIMIT 1`

	rec, err := scanRecording(s.pool.QueryRow(ctx, query, idempotencyKey, scriptID, checksum))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up duplicate: %w", err)
	}

	return rec, nil
}

func scanRecording(row pgx.Row) (*Recording, error) {
	rec := &Recording{}
	var idempotencyKey, checksum *string
	err := row.Scan(
		&rec.ID,
		&rec.ScriptID,
		&rec.SessionID,
		&rec.ContributorID,
		&rec.ObjectKey,
		&rec.DurationSeconds,
		&rec.Format,
		&rec.FileSizeBytes,
		&rec.SampleRate,
		&rec.Channels,
		&rec.BitDepth,
		&idempotencyKey,
		&checksum,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if idempotencyKey != nil {
		rec.IdempotencyKey = *idempotencyKey
	}
	if checksum != nil {
		rec.Checksum = *checksum
	}
	return rec, nil
}
