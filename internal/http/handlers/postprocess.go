package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"refinery/internal/domain"
)

type postProcessRequest struct {
	PhotoID     string        `json:"photoId"`
	ProcessType string        `json:"processType"`
	Params      domain.Params `json:"params"`
}

type refinementResponse struct {
	ID             string          `json:"id"`
	PhotoID        string          `json:"photo_id"`
	ProcessType    string          `json:"process_type"`
	Status         string          `json:"status"`
	InputImageURL  string          `json:"input_image_url"`
	OutputImageURL string          `json:"output_image_url,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	EnginePromptID string          `json:"engine_prompt_id,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toRefinementResponse(ref *domain.Refinement) refinementResponse {
	return refinementResponse{
		ID:             ref.ID,
		PhotoID:        ref.PhotoID,
		ProcessType:    string(ref.ProcessType),
		Status:         string(ref.Status),
		InputImageURL:  ref.InputImageURL,
		OutputImageURL: ref.OutputImageURL,
		ErrorMessage:   ref.ErrorMessage,
		EnginePromptID: ref.EnginePromptID,
		Params:         json.RawMessage(ref.ParamsJSON),
		CreatedAt:      ref.CreatedAt,
		UpdatedAt:      ref.UpdatedAt,
	}
}

// PostProcess runs one operation synchronously: the response carries the
// terminal record, completed or failed.
func (a *App) PostProcess(w http.ResponseWriter, r *http.Request) {
	var req postProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(r, w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if req.PhotoID == "" {
		a.error(r, w, http.StatusBadRequest, "bad_request", "photoId is required")
		return
	}
	a.dispatch(w, r, req.PhotoID, domain.ProcessType(req.ProcessType), req.Params)
}

// dispatch is the shared validation and execution path for PostProcess and
// the path-parameter variant.
func (a *App) dispatch(w http.ResponseWriter, r *http.Request, photoID string, kind domain.ProcessType, params domain.Params) {
	if params == nil {
		params = domain.Params{}
	}
	if err := domain.ValidateOperation(kind, params); err != nil {
		a.error(r, w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ref, err := a.Dispatcher.Dispatch(r.Context(), photoID, kind, params)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(r, w, http.StatusNotFound, "not_found", "photo "+photoID+" not found")
		return
	case errors.Is(err, domain.ErrEngineOffline):
		a.error(r, w, http.StatusServiceUnavailable, "engine_offline", "")
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("photo_id", photoID).Msg("post-process dispatch failed")
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}

	if ref.Status == domain.StatusError {
		a.json(w, http.StatusInternalServerError, map[string]any{
			"success":       false,
			"refinement_id": ref.ID,
			"error":         ref.ErrorMessage,
			"refinement":    toRefinementResponse(ref),
		})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":          true,
		"refinement_id":    ref.ID,
		"output_image_url": ref.OutputImageURL,
		"refinement":       toRefinementResponse(ref),
	})
}

// GetPostProcess looks up one refinement by id or lists a photo's history.
func (a *App) GetPostProcess(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("refinementId"); id != "" {
		ref, err := a.Refinements.GetByID(r.Context(), id)
		if errors.Is(err, domain.ErrNotFound) {
			a.error(r, w, http.StatusNotFound, "not_found", "refinement "+id+" not found")
			return
		}
		if err != nil {
			a.error(r, w, http.StatusInternalServerError, "internal", "")
			return
		}
		a.json(w, http.StatusOK, toRefinementResponse(ref))
		return
	}

	photoID := r.URL.Query().Get("photoId")
	if photoID == "" {
		a.error(r, w, http.StatusBadRequest, "bad_request", "refinementId or photoId is required")
		return
	}
	refs, err := a.Refinements.ListByPhoto(r.Context(), photoID)
	if err != nil {
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}
	out := make([]refinementResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, toRefinementResponse(ref))
	}
	a.json(w, http.StatusOK, map[string]any{"refinements": out})
}
