// Package api provides the HTTP API: stateless article search, catalog
// administration and stateful query sessions.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/ratelimit"
	"github.com/cewkb/kbsearch/internal/session"
	"github.com/cewkb/kbsearch/internal/sse"
	"github.com/cewkb/kbsearch/internal/validation"
)

// Config holds request-level limits.
type Config struct {
	SearchTimeout   time.Duration
	DefaultPageSize int
	MaxPageSize     int
	CORSOrigins     []string
}

// Services groups what the handlers depend on.
type Services struct {
	Catalog        *catalog.Catalog
	Sessions       *session.Registry
	Events         *sse.Manager
	Validator      *validation.Validator
	RefreshLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	cfg      Config
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger

	// searcher picks the text searcher for a snapshot.
	searcher func(*catalog.Snapshot) browse.Searcher
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, cfg Config, logger *slog.Logger) *Server {
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = session.DefaultWatchdog
	}
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 5
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = 100
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if services.Validator == nil {
		services.Validator = validation.New()
	}

	s := &Server{
		services: services,
		cfg:      cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		searcher: func(snap *catalog.Snapshot) browse.Searcher { return snap.Index },
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("kbsearch API", "1.0.0")
	humaConfig.Info.Description = "Fuzzy search, filtering and paging over the knowledge base"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerArticleRoutes()
	s.registerCatalogRoutes()
	s.registerSessionRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the underlying huma API.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(withClientIP)
	s.router.Use(streamDeadlines)
}
