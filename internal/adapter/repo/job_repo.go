package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refinery/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a queue job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, prompt, COALESCE(negative_prompt, ''), input_image_url,
COALESCE(output_image_url, ''), COALESCE(error_message, ''), params_json, status,
COALESCE(client_job_id, ''), COALESCE(webhook_url, ''), webhook_sent, webhook_sent_at,
created_at, updated_at`

// Create inserts a new job in pending state.
func (r *JobRepositoryPG) Create(ctx context.Context, j *domain.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Status = domain.StatusPending
	query := `
INSERT INTO jobs (id, prompt, negative_prompt, input_image_url, params_json, status, client_job_id, webhook_url)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
RETURNING created_at, updated_at;
`
	return r.pool.QueryRow(ctx, query,
		j.ID,
		j.Prompt,
		j.NegativePrompt,
		j.InputImageURL,
		nullableBytes(j.ParamsJSON),
		j.Status,
		j.ClientJobID,
		j.WebhookURL,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

// MarkProcessing transitions pending -> processing. A job in any other state
// yields ErrAlreadyProcessing so concurrent process calls cannot double-run.
func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, id string) error {
	query := `
UPDATE jobs
SET status = 'processing', updated_at = NOW()
WHERE id = $1 AND status = 'pending';
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("job %s: %w", id, domain.ErrAlreadyProcessing)
	}
	return nil
}

// MarkCompleted writes the terminal completed state.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, id, outputURL string) error {
	query := `
UPDATE jobs
SET status = 'completed', output_image_url = $2, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	return r.guarded(ctx, query, id, outputURL)
}

// MarkError writes the terminal error state.
func (r *JobRepositoryPG) MarkError(ctx context.Context, id, message string) error {
	query := `
UPDATE jobs
SET status = 'error', error_message = $2, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	return r.guarded(ctx, query, id, message)
}

// MarkNotified records the single webhook delivery attempt. Orthogonal to the
// job status, so no transition guard applies.
func (r *JobRepositoryPG) MarkNotified(ctx context.Context, id string, sent bool, at time.Time) error {
	query := `
UPDATE jobs
SET webhook_sent = $2, webhook_sent_at = $3, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, sent, at)
	return err
}

func (r *JobRepositoryPG) guarded(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %v: %w", args[0], domain.ErrInvalidTransition)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	return scanJob(row)
}

// List returns all jobs, newest first.
func (r *JobRepositoryPG) List(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimPending atomically claims the oldest pending job for the worker.
// SKIP LOCKED keeps concurrent workers from fighting over the same row.
func (r *JobRepositoryPG) ClaimPending(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'processing', updated_at = NOW()
WHERE id = (
	SELECT id FROM jobs
	WHERE status = 'pending'
	ORDER BY created_at
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
RETURNING ` + jobColumns + `;
`
	row := r.pool.QueryRow(ctx, query)
	return scanJob(row)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	if err := row.Scan(
		&j.ID,
		&j.Prompt,
		&j.NegativePrompt,
		&j.InputImageURL,
		&j.OutputImageURL,
		&j.ErrorMessage,
		&j.ParamsJSON,
		&j.Status,
		&j.ClientJobID,
		&j.WebhookURL,
		&j.WebhookSent,
		&j.WebhookSentAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}
