// Package httpapi assembles the chi router for the public API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"promoreel/internal/http/handlers"
	"promoreel/internal/infra"
	"promoreel/internal/metrics"
	"promoreel/internal/middleware"
)

type Options struct {
	JWTSecret          string
	DefaultLocale      string
	CountryLookup      middleware.CountryLookup
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	Logger             *infra.Logger
	Metrics            *metrics.Recorder
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*infra.LoggerOrDiscard(opts.Logger), opts.Metrics),
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Use(middleware.RateLimit(opts.RateLimitPerMin))

		r.Post("/v1/concepts", app.ConceptsGenerate)
		r.Post("/v1/videos", app.VideosGenerate)
		r.Get("/v1/credits", app.CreditsBalance)
	})

	return r
}
