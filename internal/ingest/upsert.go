package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/pkg/models"
	"github.com/rs/zerolog/log"
)

// Upserter materializes collected identity records into the graph. All writes
// are conditional inserts keyed by natural identifier, so re-running the same
// batch produces no duplicate nodes or edges.
type Upserter struct {
	store graph.Store
}

// NewUpserter creates an Upserter backed by the given graph store.
func NewUpserter(store graph.Store) *Upserter {
	return &Upserter{store: store}
}

// UpsertIdentityGraph writes roles, their policies, and the non-wildcard
// actions those policies permit. It returns the number of roles processed.
//
// A store failure aborts the batch and propagates; writes committed for
// earlier roles remain, and the caller retries by re-invoking with the same
// input. A policy document that fails to parse is skipped with a warning and
// does not abort the batch; the Policy node and HAS_POLICY edge are still
// created so the document snapshot is queryable.
func (u *Upserter) UpsertIdentityGraph(ctx context.Context, records []models.RoleRecord) (int, error) {
	processed := 0
	for _, role := range records {
		if err := u.upsertRole(ctx, role); err != nil {
			return processed, fmt.Errorf("upserting role %s: %w", role.ARN, err)
		}
		processed++
	}
	return processed, nil
}

func (u *Upserter) upsertRole(ctx context.Context, role models.RoleRecord) error {
	roleRef, err := u.findOrCreateNode(ctx, graph.NodeRole, role.ARN, map[string]string{
		graph.PropARN:       role.ARN,
		graph.PropName:      role.Name,
		graph.PropAccountID: role.AccountID,
	})
	if err != nil {
		return err
	}

	for _, pol := range role.Policies {
		polRef, err := u.findOrCreateNode(ctx, graph.NodePolicy, pol.ARN, map[string]string{
			graph.PropARN:      pol.ARN,
			graph.PropName:     pol.Name,
			graph.PropType:     pol.Type,
			graph.PropDocument: string(pol.Document),
		})
		if err != nil {
			return err
		}
		if err := u.findOrCreateEdge(ctx, roleRef, polRef, graph.EdgeHasPolicy, nil); err != nil {
			return err
		}

		actions, err := allowedActions(pol.Document)
		if err != nil {
			log.Warn().Str("policy", pol.ARN).Err(err).Msg("skipping unparseable policy document")
			continue
		}
		for _, action := range actions {
			actionRef, err := u.findOrCreateNode(ctx, graph.NodeAction, action, map[string]string{
				graph.PropName: action,
			})
			if err != nil {
				return err
			}
			if err := u.findOrCreateEdge(ctx, polRef, actionRef, graph.EdgePermits, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// allowedActions extracts the non-wildcard actions from a policy document's
// Allow statements. Wildcard entries (any action containing "*") are excluded
// from graph materialization.
func allowedActions(document json.RawMessage) ([]string, error) {
	var doc models.PolicyDocument
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	var actions []string
	for _, stmt := range doc.Statement {
		if stmt.Effect != models.EffectAllow {
			continue
		}
		for _, action := range stmt.Action {
			if strings.Contains(action, "*") {
				continue
			}
			actions = append(actions, action)
		}
	}
	return actions, nil
}

// findOrCreateNode queries by key and creates the node only when absent.
// The store's conditional-insert contract keeps this safe when two batches
// race on the same key.
func (u *Upserter) findOrCreateNode(ctx context.Context, label, key string, props map[string]string) (graph.Ref, error) {
	ref := graph.Ref{Label: label, Key: key}
	if _, err := u.store.FindNode(ctx, label, key); err == nil {
		return ref, nil
	} else if !errors.Is(err, graph.ErrNotFound) {
		return ref, err
	}
	if _, err := u.store.CreateNode(ctx, label, key, props); err != nil {
		return ref, err
	}
	return ref, nil
}

func (u *Upserter) findOrCreateEdge(ctx context.Context, src, dst graph.Ref, label string, props map[string]string) error {
	if _, err := u.store.FindEdge(ctx, src, dst, label); err == nil {
		return nil
	} else if !errors.Is(err, graph.ErrNotFound) {
		return err
	}
	_, err := u.store.CreateEdge(ctx, src, dst, label, props)
	return err
}
