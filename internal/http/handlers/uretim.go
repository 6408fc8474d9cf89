package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"refinery/internal/domain"
)

// UretimProcess is the path-parameter variant of PostProcess kept for the
// dashboard's production screens: /api/uretim/{photoId}/{processType}.
// Parameters arrive in the JSON body, with query string values as a fallback
// so simple operations work from a plain link.
func (a *App) UretimProcess(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoId")
	kind := domain.ProcessType(chi.URLParam(r, "processType"))

	params := queryParams(r)
	if r.Body != nil {
		var body domain.Params
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			for k, v := range body {
				params[k] = v
			}
		}
	}
	a.dispatch(w, r, photoID, kind, params)
}

// UretimHistory lists a photo's refinements of one process type, newest first.
func (a *App) UretimHistory(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoId")
	kind := domain.ProcessType(chi.URLParam(r, "processType"))

	refs, err := a.Refinements.ListByPhoto(r.Context(), photoID)
	if err != nil {
		a.error(r, w, http.StatusInternalServerError, "internal", "")
		return
	}
	out := make([]refinementResponse, 0, len(refs))
	for _, ref := range refs {
		if ref.ProcessType == kind {
			out = append(out, toRefinementResponse(ref))
		}
	}
	a.json(w, http.StatusOK, map[string]any{"refinements": out})
}

// queryParams lifts the query string into a parameter bag. Numeric-looking
// values become numbers so they match JSON-decoded params.
func queryParams(r *http.Request) domain.Params {
	params := domain.Params{}
	for key, values := range r.URL.Query() {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		raw := values[0]
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			params[key] = n
			continue
		}
		params[key] = raw
	}
	return params
}
