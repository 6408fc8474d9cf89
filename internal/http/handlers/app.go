package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"refinery/internal/dispatch"
	"refinery/internal/domain"
	"refinery/internal/middleware"
)

// App bundles the dependencies the HTTP handlers share.
type App struct {
	Photos      domain.PhotoRepository
	Refinements domain.RefinementRepository
	Jobs        domain.JobRepository
	Engine      dispatch.EngineClient
	Dispatcher  *dispatch.Orchestrator
	Runner      *dispatch.Runner
	Logger      zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// error writes a localized error envelope. code is a stable machine-readable
// identifier; detail carries request-specific context verbatim.
func (a *App) error(r *http.Request, w http.ResponseWriter, status int, code, detail string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, errorBody{Error: code, Message: localizedMessage(locale, code), Detail: detail})
}

var messages = map[string]map[string]string{
	"en": {
		"bad_request":       "invalid request",
		"not_found":         "resource not found",
		"engine_offline":    "image engine is not reachable",
		"already_processed": "job was already picked up",
		"processing_failed": "processing did not produce a result",
		"internal":          "internal error",
	},
	"id": {
		"bad_request":       "permintaan tidak valid",
		"not_found":         "data tidak ditemukan",
		"engine_offline":    "mesin gambar tidak dapat dihubungi",
		"already_processed": "pekerjaan sudah diambil",
		"processing_failed": "pemrosesan tidak menghasilkan keluaran",
		"internal":          "kesalahan internal",
	},
}

func localizedMessage(locale, code string) string {
	if byCode, ok := messages[locale]; ok {
		if msg, ok := byCode[code]; ok {
			return msg
		}
	}
	if msg, ok := messages["en"][code]; ok {
		return msg
	}
	return code
}
