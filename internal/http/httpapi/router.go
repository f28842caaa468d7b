package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	mw "server/internal/middleware"
)

// Options carries router construction knobs.
type Options struct {
	JWTSecret       string
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   mw.CountryLookup
	RateLimitPerMin int
	StaticDir       string
}

// NewRouter assembles the HTTP surface: public health and static asset
// routes plus the authenticated /v1 merchant API.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Logger(app.Logger),
		mw.CORS(opts.AllowedOrigins),
		mw.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(mw.AuthJWT(opts.JWTSecret))
			if opts.RateLimitPerMin > 0 {
				r.Use(mw.RateLimit(opts.RateLimitPerMin, time.Minute))
			}

			r.Route("/generations", func(r chi.Router) {
				r.Post("/", app.CreateGeneration)
				r.Get("/", app.ListGenerations)
				r.Get("/{id}", app.GenerationStatus)
				r.Post("/{id}/refund", app.RefundGeneration)
			})

			r.Get("/credits", app.Credits)

			r.Route("/assets", func(r chi.Router) {
				r.Get("/", app.ListAssets)
				r.Get("/archive", app.ArchiveAssets)
				r.Get("/{id}/download", app.DownloadAsset)
			})

			r.Get("/stats/summary", app.StatsSummary)
		})
	})

	return r
}
