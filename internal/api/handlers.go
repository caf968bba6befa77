package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/internal/scoring"
	"github.com/org/exposuregraph/pkg/models"
)

// HealthHandler handles GET /v1/sys/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"lookback_days": s.cfg.LookbackDays,
	})
}

// IdentityUpsertHandler handles POST /v1/graph/identity
func (s *Server) IdentityUpsertHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []models.RoleRecord `json:"records"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := s.upserter.UpsertIdentityGraph(r.Context(), req.Records)
	if err != nil {
		// Writes for earlier roles remain; the caller re-invokes to finish.
		rolesUpserted.Add(float64(n))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("partial write, %d roles committed: %s", n, err))
		return
	}
	rolesUpserted.Add(float64(n))
	writeJSON(w, http.StatusOK, map[string]any{"roles_processed": n})
}

// UsageAnnotateHandler handles POST /v1/graph/usage
func (s *Server) UsageAnnotateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WindowStart time.Time           `json:"window_start"`
		Usage       map[string][]string `json:"usage"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WindowStart.IsZero() {
		req.WindowStart = time.Now().UTC().AddDate(0, 0, -s.cfg.LookbackDays)
	}

	result, err := s.annotator.AnnotateUsage(r.Context(), req.Usage, req.WindowStart)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	unknownRoles.Add(float64(len(result.UnknownRoles)))
	writeJSON(w, http.StatusOK, result)
}

// RolesHandler handles GET /v1/roles
func (s *Server) RolesHandler(w http.ResponseWriter, r *http.Request) {
	arns, err := s.store.NodeKeysByLabel(r.Context(), graph.NodeRole)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if arns == nil {
		arns = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": arns})
}

// RoleMetricsHandler handles GET /v1/roles/metrics?arn=
func (s *Server) RoleMetricsHandler(w http.ResponseWriter, r *http.Request) {
	arn := r.URL.Query().Get("arn")
	if arn == "" {
		writeError(w, http.StatusBadRequest, "missing arn query parameter")
		return
	}

	metrics, err := s.extractor.ExtractMetrics(r.Context(), arn)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	actions, err := s.extractor.AllowedActions(r.Context(), arn)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"arn":        arn,
		"metrics":    metrics,
		"risk_level": scoring.ClassifySet(actions),
	})
}

// RoleScoreHandler handles GET /v1/roles/score?arn=
func (s *Server) RoleScoreHandler(w http.ResponseWriter, r *http.Request) {
	arn := r.URL.Query().Get("arn")
	if arn == "" {
		writeError(w, http.StatusBadRequest, "missing arn query parameter")
		return
	}

	metrics, err := s.extractor.ExtractMetrics(r.Context(), arn)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"arn":     arn,
		"metrics": metrics,
		"score":   scoring.Score(*metrics),
	})
}

// ScoreRunHandler handles POST /v1/score/run
func (s *Server) ScoreRunHandler(w http.ResponseWriter, r *http.Request) {
	results, err := s.orchestrator.RunScoringPass(r.Context())
	if err != nil {
		scoringPasses.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	scoringPasses.WithLabelValues("ok").Inc()
	rolesScored.Add(float64(len(results)))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("scoring complete for %d roles", len(results)),
		"results": results,
	})
}

// CollectIdentityHandler handles POST /v1/collect/identity
func (s *Server) CollectIdentityHandler(w http.ResponseWriter, r *http.Request) {
	if s.identity == nil {
		writeError(w, http.StatusServiceUnavailable, "identity collector not configured")
		return
	}
	records, err := s.identity.CollectRoles(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "collecting iam data: "+err.Error())
		return
	}
	n, err := s.upserter.UpsertIdentityGraph(r.Context(), records)
	rolesUpserted.Add(float64(n))
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("partial write, %d roles committed: %s", n, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roles_collected": len(records),
		"roles_processed": n,
	})
}

// CollectUsageHandler handles POST /v1/collect/usage
func (s *Server) CollectUsageHandler(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "usage collector not configured")
		return
	}
	windowStart := time.Now().UTC().AddDate(0, 0, -s.cfg.LookbackDays)
	usage, err := s.usage.CollectUsage(r.Context(), windowStart)
	if err != nil {
		writeError(w, http.StatusBadGateway, "collecting usage data: "+err.Error())
		return
	}
	result, err := s.annotator.AnnotateUsage(r.Context(), usage, windowStart)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	unknownRoles.Add(float64(len(result.UnknownRoles)))
	writeJSON(w, http.StatusOK, result)
}

func writeGraphError(w http.ResponseWriter, err error) {
	if errors.Is(err, graph.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
