package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"refinery/internal/domain"
	"refinery/internal/engine"
	"refinery/internal/infra/metrics"
)

// Notifier delivers terminal job outcomes. Reports delivery success so the
// runner can persist the bookkeeping.
type Notifier interface {
	Notify(ctx context.Context, job *domain.Job, outcome domain.Outcome) bool
}

// Runner executes one claimed queue job end to end: graph compilation, engine
// round trip, terminal update and exactly one webhook delivery attempt. Both
// the process endpoint and the worker funnel through it.
type Runner struct {
	jobs     domain.JobRepository
	engine   EngineClient
	notifier Notifier
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewRunner(jobs domain.JobRepository, eng EngineClient, notifier Notifier, timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Runner{
		jobs:     jobs,
		engine:   eng,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run processes a job already in the processing state. The returned outcome
// mirrors what was persisted and notified.
func (r *Runner) Run(ctx context.Context, job *domain.Job) domain.Outcome {
	kind, params := r.operation(job)

	image, err := r.engine.FetchImage(ctx, job.InputImageURL)
	if err != nil {
		return r.finish(ctx, job, domain.Outcome{Status: domain.StatusError, ErrorMessage: "fetch input image: " + err.Error()}, string(kind))
	}

	graph := engine.Compile(kind, params, "input.png")
	promptID, err := r.engine.SubmitJob(ctx, graph, image)
	if err != nil {
		return r.finish(ctx, job, domain.Outcome{Status: domain.StatusError, ErrorMessage: "submit to engine: " + err.Error()}, string(kind))
	}

	start := time.Now()
	res, err := r.engine.AwaitCompletion(ctx, promptID, r.timeout)
	metrics.EngineWait("job", time.Since(start))
	if err != nil {
		return r.finish(ctx, job, domain.Outcome{Status: domain.StatusError, ErrorMessage: "processing aborted: " + err.Error()}, string(kind))
	}

	var outcome domain.Outcome
	if res.State == engine.StateCompleted {
		outcome = domain.Outcome{Status: domain.StatusCompleted, OutputURL: res.OutputURL}
	} else {
		outcome = domain.Outcome{Status: domain.StatusError, ErrorMessage: res.Message}
	}
	return r.finish(ctx, job, outcome, string(kind))
}

// operation resolves the graph kind and parameters for a job. The kind rides
// in the params under "operation"; absent or unknown kinds fall through to the
// compiler's passthrough. The job's own prompt fields backfill the params so
// prompt-driven templates see them.
func (r *Runner) operation(job *domain.Job) (domain.ProcessType, domain.Params) {
	params := domain.Params{}
	if len(job.ParamsJSON) > 0 {
		_ = json.Unmarshal(job.ParamsJSON, &params)
	}
	if _, ok := params["prompt"]; !ok && job.Prompt != "" {
		params["prompt"] = job.Prompt
	}
	if _, ok := params["negativePrompt"]; !ok && job.NegativePrompt != "" {
		params["negativePrompt"] = job.NegativePrompt
	}
	return domain.ProcessType(params.StringOr("operation", "")), params
}

func (r *Runner) finish(ctx context.Context, job *domain.Job, outcome domain.Outcome, kind string) domain.Outcome {
	// The terminal write and webhook bookkeeping must land even when the
	// caller disconnected or the worker is shutting down.
	ctx = context.WithoutCancel(ctx)

	var err error
	if outcome.Status == domain.StatusCompleted {
		err = r.jobs.MarkCompleted(ctx, job.ID, outcome.OutputURL)
	} else {
		err = r.jobs.MarkError(ctx, job.ID, outcome.ErrorMessage)
	}
	if err != nil {
		// Another actor reached the terminal state first; it owns the webhook.
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("runner: terminal update lost")
		return outcome
	}
	metrics.Dispatch(kind, string(outcome.Status))

	sent := r.notifier.Notify(ctx, job, outcome)
	if err := r.jobs.MarkNotified(ctx, job.ID, sent, time.Now().UTC()); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("runner: webhook bookkeeping failed")
	}

	r.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(outcome.Status)).
		Bool("webhook_sent", sent).
		Msg("runner: job finished")
	return outcome
}
