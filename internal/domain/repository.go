package domain

import (
	"context"
	"time"
)

// PhotoRepository looks up operation subjects.
type PhotoRepository interface {
	GetByID(ctx context.Context, id string) (*Photo, error)
}

// RefinementRepository persists refinement lifecycle records. Terminal-state
// writers must return ErrInvalidTransition when the record is already
// terminal.
type RefinementRepository interface {
	Create(ctx context.Context, r *Refinement) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, outputURL, enginePromptID string) error
	MarkError(ctx context.Context, id, message string) error
	GetByID(ctx context.Context, id string) (*Refinement, error)
	ListByPhoto(ctx context.Context, photoID string) ([]*Refinement, error)
}

// JobRepository persists queue-path jobs.
type JobRepository interface {
	Create(ctx context.Context, j *Job) error
	// MarkProcessing transitions pending -> processing and returns
	// ErrAlreadyProcessing when the job is in any other state. This is the
	// idempotency guard for concurrent process calls.
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, outputURL string) error
	MarkError(ctx context.Context, id, message string) error
	MarkNotified(ctx context.Context, id string, sent bool, at time.Time) error
	GetByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context) ([]*Job, error)
	// ClaimPending atomically claims one pending job for the worker,
	// transitioning it to processing. Returns ErrNotFound when the queue is
	// empty.
	ClaimPending(ctx context.Context) (*Job, error)
}
