package scripts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rx3lixir/voicebank/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool}
}

// ListActive returns every active script of the tier
func (s *PostgresStore) ListActive(ctx context.Context, tier string) ([]domain.Script, error) {
	query := `
		SELECT id, text, duration_category, language_id
		FROM scripts
		WHERE duration_category = $1 AND active
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	defer rows.Close()

	scripts := []domain.Script{}
	for rows.Next() {
		script, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		scripts = append(scripts, *script)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scripts: %w", err)
	}

	return scripts, nil
}

// GetByID retrieves a script by ID, active or not
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Script, error) {
	scriptID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, text, duration_category, language_id
		FROM scripts
		WHERE id = $1
	`

	script, err := scanScript(s.pool.QueryRow(ctx, query, scriptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get script: %w", err)
	}

	return script, nil
}

func scanScript(row pgx.Row) (*domain.Script, error) {
	var id uuid.UUID
	script := &domain.Script{}
	if err := row.Scan(&id, &script.Text, &script.DurationCategory, &script.LanguageID); err != nil {
		return nil, err
	}
	script.ID = id.String()
	return script, nil
}
