package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refinery/internal/http/handlers"
	"refinery/internal/middleware"
)

// Options carries router-level configuration.
type Options struct {
	CORSOrigins   []string
	DefaultLocale string
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/api/ping", app.Ping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/post-process", func(r chi.Router) {
		r.Post("/", app.PostProcess)
		r.Get("/", app.GetPostProcess)
		r.Get("/types", app.ProcessTypes)
	})

	r.Route("/api/uretim/{photoId}/{processType}", func(r chi.Router) {
		r.Post("/", app.UretimProcess)
		r.Get("/", app.UretimHistory)
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", app.CreateJob)
		r.Get("/", app.ListJobs)
		r.Get("/{id}", app.GetJob)
		r.Post("/{id}/process", app.ProcessJob)
	})

	r.Get("/api/engine/status", app.EngineStatus)

	return r
}
