package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/pkg/models"
)

// Extractor reads per-role metrics from the graph.
type Extractor struct {
	store        graph.Store
	lookbackDays int
	now          func() time.Time
}

// NewExtractor creates an Extractor over the given graph store.
func NewExtractor(store graph.Store) *Extractor {
	return &Extractor{store: store, lookbackDays: LookbackWindowDays, now: time.Now}
}

// ExtractMetrics computes the scoring inputs for one role:
// distinct actions permitted through any HAS_POLICY→PERMITS path, distinct
// actions with a USED_ACTION edge, and whole days since the most recent
// last_seen. A role with no usage edges gets the full lookback window as its
// staleness, meaning never used within the window.
func (e *Extractor) ExtractMetrics(ctx context.Context, roleARN string) (*models.RoleMetrics, error) {
	roleRef := graph.Ref{Label: graph.NodeRole, Key: roleARN}
	if _, err := e.store.FindNode(ctx, graph.NodeRole, roleARN); err != nil {
		return nil, fmt.Errorf("looking up role %s: %w", roleARN, err)
	}

	allowed, err := e.allowedActionSet(ctx, roleRef)
	if err != nil {
		return nil, err
	}

	used, err := e.store.Neighbors(ctx, roleRef, graph.EdgeUsedAction)
	if err != nil {
		return nil, fmt.Errorf("traversing usage for %s: %w", roleARN, err)
	}

	days := e.lookbackDays
	var latest time.Time
	for _, action := range used {
		edge, err := e.store.FindEdge(ctx, roleRef, graph.Ref{Label: action.Label, Key: action.Key}, graph.EdgeUsedAction)
		if err != nil {
			return nil, fmt.Errorf("reading usage edge %s -> %s: %w", roleARN, action.Key, err)
		}
		seen, err := time.Parse(time.RFC3339, edge.Props[graph.PropLastSeen])
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen on %s -> %s: %w", roleARN, action.Key, err)
		}
		if seen.After(latest) {
			latest = seen
		}
	}
	if !latest.IsZero() {
		days = int(e.now().UTC().Sub(latest).Hours() / 24)
	}

	return &models.RoleMetrics{
		TotalAllowedActions: len(allowed),
		UsedActions:         len(used),
		DaysSinceLastUse:    days,
	}, nil
}

// AllowedActions returns the distinct action names permitted to the role.
func (e *Extractor) AllowedActions(ctx context.Context, roleARN string) ([]string, error) {
	roleRef := graph.Ref{Label: graph.NodeRole, Key: roleARN}
	set, err := e.allowedActionSet(ctx, roleRef)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out, nil
}

// allowedActionSet collects distinct actions reachable via HAS_POLICY→PERMITS.
// An action permitted by two policies counts once.
func (e *Extractor) allowedActionSet(ctx context.Context, roleRef graph.Ref) (map[string]bool, error) {
	policies, err := e.store.Neighbors(ctx, roleRef, graph.EdgeHasPolicy)
	if err != nil {
		return nil, fmt.Errorf("traversing policies for %s: %w", roleRef.Key, err)
	}
	set := map[string]bool{}
	for _, pol := range policies {
		actions, err := e.store.Neighbors(ctx, graph.Ref{Label: pol.Label, Key: pol.Key}, graph.EdgePermits)
		if err != nil {
			return nil, fmt.Errorf("traversing permits for %s: %w", pol.Key, err)
		}
		for _, a := range actions {
			set[a.Key] = true
		}
	}
	return set, nil
}
