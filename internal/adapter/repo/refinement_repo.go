package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refinery/internal/domain"
)

// RefinementRepositoryPG implements domain.RefinementRepository.
type RefinementRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRefinementRepository creates a refinement repository backed by PostgreSQL.
func NewRefinementRepository(pool *pgxpool.Pool) *RefinementRepositoryPG {
	return &RefinementRepositoryPG{pool: pool}
}

const refinementColumns = `id, photo_id, process_type, status, input_image_url,
COALESCE(output_image_url, ''), COALESCE(error_message, ''), COALESCE(engine_prompt_id, ''),
params_json, created_at, updated_at`

// Create inserts a new refinement in pending state, generating its id.
func (r *RefinementRepositoryPG) Create(ctx context.Context, ref *domain.Refinement) error {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	ref.Status = domain.StatusPending
	query := `
INSERT INTO refinements (id, photo_id, process_type, status, input_image_url, params_json)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at;
`
	return r.pool.QueryRow(ctx, query,
		ref.ID,
		ref.PhotoID,
		ref.ProcessType,
		ref.Status,
		ref.InputImageURL,
		nullableBytes(ref.ParamsJSON),
	).Scan(&ref.CreatedAt, &ref.UpdatedAt)
}

// MarkProcessing transitions pending -> processing.
func (r *RefinementRepositoryPG) MarkProcessing(ctx context.Context, id string) error {
	query := `
UPDATE refinements
SET status = 'processing', updated_at = NOW()
WHERE id = $1 AND status = 'pending';
`
	return r.guarded(ctx, query, id)
}

// MarkCompleted writes the terminal completed state. Rejected when the record
// is already terminal.
func (r *RefinementRepositoryPG) MarkCompleted(ctx context.Context, id, outputURL, enginePromptID string) error {
	query := `
UPDATE refinements
SET status = 'completed', output_image_url = $2, engine_prompt_id = $3, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	return r.guarded(ctx, query, id, outputURL, enginePromptID)
}

// MarkError writes the terminal error state. Rejected when the record is
// already terminal.
func (r *RefinementRepositoryPG) MarkError(ctx context.Context, id, message string) error {
	query := `
UPDATE refinements
SET status = 'error', error_message = $2, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	return r.guarded(ctx, query, id, message)
}

// guarded runs a conditional transition and fails loudly when no row matched:
// either the record is missing or the transition would not be monotonic.
func (r *RefinementRepositoryPG) guarded(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refinement %v: %w", args[0], domain.ErrInvalidTransition)
	}
	return nil
}

// GetByID fetches a refinement by its identifier.
func (r *RefinementRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Refinement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+refinementColumns+` FROM refinements WHERE id = $1;`, id)
	return scanRefinement(row)
}

// ListByPhoto returns all refinements of a photo, newest first.
func (r *RefinementRepositoryPG) ListByPhoto(ctx context.Context, photoID string) ([]*domain.Refinement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+refinementColumns+` FROM refinements WHERE photo_id = $1 ORDER BY created_at DESC;`, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Refinement
	for rows.Next() {
		ref, err := scanRefinement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func scanRefinement(row pgx.Row) (*domain.Refinement, error) {
	var ref domain.Refinement
	if err := row.Scan(
		&ref.ID,
		&ref.PhotoID,
		&ref.ProcessType,
		&ref.Status,
		&ref.InputImageURL,
		&ref.OutputImageURL,
		&ref.ErrorMessage,
		&ref.EnginePromptID,
		&ref.ParamsJSON,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
