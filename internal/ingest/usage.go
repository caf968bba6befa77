package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/rs/zerolog/log"
)

// Annotator records observed action usage on the graph as USED_ACTION edges.
type Annotator struct {
	store graph.Store
	now   func() time.Time
}

// NewAnnotator creates an Annotator backed by the given graph store.
func NewAnnotator(store graph.Store) *Annotator {
	return &Annotator{store: store, now: time.Now}
}

// NewAnnotatorAt creates an Annotator with a fixed clock. Tests use this to
// control last_seen timestamps.
func NewAnnotatorAt(store graph.Store, now func() time.Time) *Annotator {
	return &Annotator{store: store, now: now}
}

// AnnotateResult reports the outcome of one annotation pass.
type AnnotateResult struct {
	RolesAnnotated int      `json:"roles_annotated"`
	UnknownRoles   []string `json:"unknown_roles,omitempty"`
}

// AnnotateUsage upserts a USED_ACTION edge for every (role, action) pair in
// usageByRole. On edge creation lookback_start is set to windowStart and never
// updated afterwards; last_seen is refreshed on every pass, so it is
// monotonically non-decreasing across runs.
//
// A role ARN with no Role node in the graph is skipped with a warning; usage
// must attach to a role collected by a prior identity pass. Actions are
// find-or-created: usage can legitimately reference actions no collected
// policy document mentioned, and both paths converge on the same Action node.
func (a *Annotator) AnnotateUsage(ctx context.Context, usageByRole map[string][]string, windowStart time.Time) (*AnnotateResult, error) {
	result := &AnnotateResult{}
	lookbackStart := windowStart.UTC().Format(time.RFC3339)

	for roleARN, actions := range usageByRole {
		roleRef := graph.Ref{Label: graph.NodeRole, Key: roleARN}
		if _, err := a.store.FindNode(ctx, graph.NodeRole, roleARN); err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				log.Warn().Str("role", roleARN).Msg("role not found in graph, skipping usage data")
				result.UnknownRoles = append(result.UnknownRoles, roleARN)
				continue
			}
			return result, fmt.Errorf("looking up role %s: %w", roleARN, err)
		}

		for _, action := range actions {
			actionRef := graph.Ref{Label: graph.NodeAction, Key: action}
			if _, err := a.store.CreateNode(ctx, graph.NodeAction, action, map[string]string{
				graph.PropName: action,
			}); err != nil {
				return result, fmt.Errorf("upserting action %s: %w", action, err)
			}
			if _, err := a.store.CreateEdge(ctx, roleRef, actionRef, graph.EdgeUsedAction, map[string]string{
				graph.PropLookbackStart: lookbackStart,
			}); err != nil {
				return result, fmt.Errorf("upserting usage edge %s -> %s: %w", roleARN, action, err)
			}
			lastSeen := a.now().UTC().Format(time.RFC3339)
			if err := a.store.SetEdgeProperty(ctx, roleRef, actionRef, graph.EdgeUsedAction, graph.PropLastSeen, lastSeen); err != nil {
				return result, fmt.Errorf("updating last_seen %s -> %s: %w", roleARN, action, err)
			}
		}
		result.RolesAnnotated++
	}
	return result, nil
}
