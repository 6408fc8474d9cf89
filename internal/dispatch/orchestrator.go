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

// EngineClient is the slice of the engine API the dispatch layer drives.
type EngineClient interface {
	CheckStatus(ctx context.Context) engine.Status
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
	SubmitJob(ctx context.Context, g engine.Graph, image []byte) (string, error)
	AwaitCompletion(ctx context.Context, promptID string, timeout time.Duration) (engine.Result, error)
}

// Orchestrator runs the synchronous refinement path: one call takes a photo
// and an operation all the way to a terminal record.
type Orchestrator struct {
	photos      domain.PhotoRepository
	refinements domain.RefinementRepository
	engine      EngineClient
	timeout     time.Duration
	logger      zerolog.Logger
}

func NewOrchestrator(
	photos domain.PhotoRepository,
	refinements domain.RefinementRepository,
	eng EngineClient,
	timeout time.Duration,
	logger zerolog.Logger,
) *Orchestrator {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Orchestrator{
		photos:      photos,
		refinements: refinements,
		engine:      eng,
		timeout:     timeout,
		logger:      logger,
	}
}

// Dispatch validates preconditions, creates the lifecycle record and drives
// the operation to a terminal state. Engine-side failures are absorbed into
// the record (returned with StatusError); a non-nil error means no terminal
// state was reached: unknown photo, offline engine, persistence failure or
// context cancellation.
func (o *Orchestrator) Dispatch(ctx context.Context, photoID string, kind domain.ProcessType, params domain.Params) (*domain.Refinement, error) {
	photo, err := o.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}

	// Gate before any record exists: a dead engine must not leave orphans.
	if st := o.engine.CheckStatus(ctx); !st.Online {
		o.logger.Warn().Str("photo_id", photoID).Str("error", st.Error).Msg("dispatch: engine offline")
		return nil, domain.ErrEngineOffline
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	ref := &domain.Refinement{
		PhotoID:       photo.ID,
		ProcessType:   kind,
		Status:        domain.StatusPending,
		InputImageURL: photo.PhotoURL,
		ParamsJSON:    paramsJSON,
	}
	if err := o.refinements.Create(ctx, ref); err != nil {
		return nil, err
	}

	image, err := o.engine.FetchImage(ctx, photo.PhotoURL)
	if err != nil {
		return o.fail(ctx, ref.ID, kind, "fetch input image: "+err.Error())
	}

	if err := o.refinements.MarkProcessing(ctx, ref.ID); err != nil {
		return nil, err
	}

	graph := engine.Compile(kind, params, "input.png")
	promptID, err := o.engine.SubmitJob(ctx, graph, image)
	if err != nil {
		return o.fail(ctx, ref.ID, kind, "submit to engine: "+err.Error())
	}

	start := time.Now()
	res, err := o.engine.AwaitCompletion(ctx, promptID, o.timeout)
	metrics.EngineWait("refinement", time.Since(start))
	if err != nil {
		// Cancellation mid-wait. The record must still reach a terminal
		// state, so the write runs detached from the caller's context.
		if merr := o.refinements.MarkError(context.WithoutCancel(ctx), ref.ID, "dispatch aborted: "+err.Error()); merr != nil {
			o.logger.Error().Err(merr).Str("refinement_id", ref.ID).Msg("dispatch: abort write failed")
		}
		return nil, err
	}

	switch res.State {
	case engine.StateCompleted:
		if err := o.refinements.MarkCompleted(ctx, ref.ID, res.OutputURL, promptID); err != nil {
			return nil, err
		}
		metrics.Dispatch(string(kind), string(domain.StatusCompleted))
		o.logger.Info().Str("refinement_id", ref.ID).Str("process_type", string(kind)).Msg("dispatch: completed")
		return o.refinements.GetByID(ctx, ref.ID)
	default:
		return o.fail(ctx, ref.ID, kind, res.Message)
	}
}

func (o *Orchestrator) fail(ctx context.Context, id string, kind domain.ProcessType, message string) (*domain.Refinement, error) {
	// Terminal writes run detached so a caller disconnect mid-dispatch cannot
	// strand the record in a non-terminal state.
	ctx = context.WithoutCancel(ctx)
	if err := o.refinements.MarkError(ctx, id, message); err != nil {
		return nil, err
	}
	metrics.Dispatch(string(kind), string(domain.StatusError))
	o.logger.Error().Str("refinement_id", id).Str("process_type", string(kind)).Str("reason", message).Msg("dispatch: failed")
	return o.refinements.GetByID(ctx, id)
}
