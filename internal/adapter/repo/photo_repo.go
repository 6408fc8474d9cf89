package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refinery/internal/domain"
)

// PhotoRepositoryPG implements domain.PhotoRepository.
type PhotoRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository creates a photo repository backed by PostgreSQL.
func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepositoryPG {
	return &PhotoRepositoryPG{pool: pool}
}

// GetByID fetches a generated photo by its identifier.
func (r *PhotoRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	query := `
SELECT id, request_id, photo_url, prompt, COALESCE(negative_prompt, ''), created_at
FROM generated_photos
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var p domain.Photo
	if err := row.Scan(&p.ID, &p.RequestID, &p.PhotoURL, &p.Prompt, &p.NegativePrompt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
