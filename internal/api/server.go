// Package api exposes the identity graph and scoring operations over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/internal/ingest"
	"github.com/org/exposuregraph/internal/scoring"
	"github.com/org/exposuregraph/internal/sink"
	"github.com/org/exposuregraph/pkg/models"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr      string
	TLSCertFile     string
	TLSKeyFile      string
	LookbackDays    int
	ContinueOnError bool
}

// IdentitySource produces collected role records (the AWS IAM collector).
type IdentitySource interface {
	CollectRoles(ctx context.Context) ([]models.RoleRecord, error)
}

// UsageSource produces aggregated usage data (the CloudTrail collector).
type UsageSource interface {
	CollectUsage(ctx context.Context, windowStart time.Time) (map[string][]string, error)
}

// Server is the API server.
type Server struct {
	store        graph.Store
	upserter     *ingest.Upserter
	annotator    *ingest.Annotator
	extractor    *scoring.Extractor
	orchestrator *scoring.Orchestrator
	identity     IdentitySource
	usage        UsageSource
	cfg          Config
	httpSrv      *http.Server
}

// NewServer creates a fully wired Server over the given graph store and
// metrics sink.
func NewServer(store graph.Store, snk sink.Sink, cfg Config) *Server {
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = scoring.LookbackWindowDays
	}
	extractor := scoring.NewExtractor(store)
	orchestrator := scoring.NewOrchestrator(store, extractor, snk)
	orchestrator.ContinueOnError = cfg.ContinueOnError

	return &Server{
		store:        store,
		upserter:     ingest.NewUpserter(store),
		annotator:    ingest.NewAnnotator(store),
		extractor:    extractor,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// SetCollectors attaches the AWS collectors. Without them the collect
// endpoints respond 503 and ingestion happens via the graph endpoints only.
func (s *Server) SetCollectors(identity IdentitySource, usage UsageSource) {
	s.identity = identity
	s.usage = usage
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)

	// Prometheus metrics
	r.Handle("/metrics", MetricsHandler())

	r.Get("/v1/sys/health", s.HealthHandler)

	r.Post("/v1/graph/identity", s.IdentityUpsertHandler)
	r.Post("/v1/graph/usage", s.UsageAnnotateHandler)

	r.Get("/v1/roles", s.RolesHandler)
	r.Get("/v1/roles/metrics", s.RoleMetricsHandler)
	r.Get("/v1/roles/score", s.RoleScoreHandler)

	r.Post("/v1/score/run", s.ScoreRunHandler)

	r.Post("/v1/collect/identity", s.CollectIdentityHandler)
	r.Post("/v1/collect/usage", s.CollectUsageHandler)

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // collection endpoints paginate external APIs
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
