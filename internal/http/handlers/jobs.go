package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"refinery/internal/domain"
)

type createJobRequest struct {
	Prompt         string        `json:"prompt"`
	NegativePrompt string        `json:"negativePrompt"`
	InputImageURL  string        `json:"inputImageUrl"`
	Params         domain.Params `json:"params"`
	ClientJobID    string        `json:"clientJobId"`
	WebhookURL     string        `json:"webhookUrl"`
}

type jobResponse struct {
	ID             string          `json:"id"`
	Prompt         string          `json:"prompt"`
	NegativePrompt string          `json:"negative_prompt,omitempty"`
	InputImageURL  string          `json:"input_image_url"`
	OutputImageURL string          `json:"output_image_url,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Status         string          `json:"status"`
	ClientJobID    string          `json:"client_job_id,omitempty"`
	WebhookURL     string          `json:"webhook_url,omitempty"`
	WebhookSent    bool            `json:"webhook_sent"`
	WebhookSentAt  *time.Time      `json:"webhook_sent_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toJobResponse(j *domain.Job) jobResponse {
	return jobResponse{
		ID:             j.ID,
		Prompt:         j.Prompt,
		NegativePrompt: j.NegativePrompt,
		InputImageURL:  j.InputImageURL,
		OutputImageURL: j.OutputImageURL,
		ErrorMessage:   j.ErrorMessage,
		Params:         json.RawMessage(j.ParamsJSON),
		Status:         string(j.Status),
		ClientJobID:    j.ClientJobID,
		WebhookURL:     j.WebhookURL,
		WebhookSent:    j.WebhookSent,
		WebhookSentAt:  j.WebhookSentAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

// CreateJob enqueues a job without touching the engine. Processing happens
// later through ProcessJob or the worker.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(r, w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if req.Prompt == "" {
		a.error(r, w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if req.InputImageURL == "" {
		a.error(r, w, http.StatusBadRequest, "bad_request", "inputImageUrl is required")
		return
	}

	var paramsJSON []byte
	if req.Params != nil {
		var err error
		if paramsJSON, err = json.Marshal(req.Params); err != nil {
			a.error(r, w, http.StatusBadRequest, "bad_request", "invalid params")
			return
		}
	}
	job := &domain.Job{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		InputImageURL:  req.InputImageURL,
		ParamsJSON:     paramsJSON,
		Status:         domain.StatusPending,
		ClientJobID:    req.ClientJobID,
		WebhookURL:     req.WebhookURL,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("create job failed")
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}
	a.json(w, http.StatusCreated, toJobResponse(job))
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Jobs.List(r.Context())
	if err != nil {
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": out})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(r, w, http.StatusNotFound, "not_found", "job "+id+" not found")
		return
	}
	if err != nil {
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

// ProcessJob claims a pending job and runs it in the background. The claim is
// a conditional transition, so concurrent calls for the same job resolve to
// exactly one winner; losers get 409.
func (a *App) ProcessJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(r, w, http.StatusNotFound, "not_found", "job "+id+" not found")
		return
	}
	if err != nil {
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}

	if st := a.Engine.CheckStatus(r.Context()); !st.Online {
		a.error(r, w, http.StatusServiceUnavailable, "engine_offline", "")
		return
	}

	if err := a.Jobs.MarkProcessing(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessing) {
			a.error(r, w, http.StatusConflict, "already_processed", "job "+id+" is not pending")
			return
		}
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}
	job.Status = domain.StatusProcessing

	// Detached from the request: the caller gets the webhook, not the body.
	go func(job *domain.Job) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		a.Runner.Run(ctx, job)
	}(job)

	a.json(w, http.StatusAccepted, toJobResponse(job))
}
