// Package server exposes the sampling engine and run history over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/survey-sampler/internal/config"
	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/store"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store    store.Store
	cfg      config.ServerConfig
	defaults model.Params
	now      func() time.Time
}

// New creates a Server. st may be nil, in which case recording and the run
// history endpoints answer 503. defaults fill fields a request leaves out.
func New(st store.Store, cfg config.ServerConfig, defaults model.Params) *Server {
	return &Server{store: st, cfg: cfg, defaults: defaults, now: time.Now}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{runIDHeader, seedHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			burst := s.cfg.RateBurst
			if burst <= 0 {
				burst = 1
			}
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)))
		}
		r.Post("/sample", s.handleSample)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/allocations", s.handleListAllocations)
	})
	return r
}
