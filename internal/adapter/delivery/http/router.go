// Package http provides the HTTP delivery layer of the shortener: request
// identification, the JSON API, the redirect endpoint and operational routes.
package http

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig holds the pieces of the router that are not use cases.
type RouterConfig struct {
	// BaseURL prefixes codes in the short_url field of create responses.
	BaseURL    string
	Identifier *Identifier
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// TrustedProxies lists the peers whose X-Real-IP and X-Forwarded-For
	// headers are honoured. Empty means forwarding headers are ignored.
	TrustedProxies []netip.Prefix
}

// NewRouter initializes a chi router with middleware, the v1 API and the
// redirect route.
func NewRouter(logger *httplog.Logger, cfg RouterConfig, urlUseCase urlUseCase) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(realIP(cfg.TrustedProxies))
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	h := newURLHandler(urlUseCase, validator.New(), cfg.BaseURL)

	identifier := cfg.Identifier
	if identifier == nil {
		identifier = NewIdentifier("", nil)
	}
	identify := identifier.Middleware

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization", apiKeyHeader},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))

		r.Get("/ping", handlePing)

		r.Group(func(r chi.Router) {
			r.Use(identify)

			r.Post("/shorten", h.shorten)
			r.Get("/urls/{code}/stats", h.stats)
		})
	})

	r.With(identify).Get("/{code}", h.redirect)

	return r
}
