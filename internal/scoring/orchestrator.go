package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/internal/sink"
	"github.com/org/exposuregraph/pkg/models"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs scoring passes over every role in the graph and delivers
// the results to the metrics sink.
type Orchestrator struct {
	store     graph.Store
	extractor *Extractor
	sink      sink.Sink
	now       func() time.Time

	// ContinueOnError isolates per-role failures: a failing role is logged
	// and skipped instead of aborting the pass. Off by default, so a pass
	// fails fast and surfaces the first error.
	ContinueOnError bool
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store graph.Store, extractor *Extractor, s sink.Sink) *Orchestrator {
	return &Orchestrator{store: store, extractor: extractor, sink: s, now: time.Now}
}

// RunScoringPass enumerates all role ARNs in the graph, extracts metrics and
// scores each, emits one record per role to the sink, and returns the records.
func (o *Orchestrator) RunScoringPass(ctx context.Context) ([]models.ScoreRecord, error) {
	arns, err := o.store.NodeKeysByLabel(ctx, graph.NodeRole)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}

	results := make([]models.ScoreRecord, 0, len(arns))
	for _, arn := range arns {
		rec, err := o.scoreRole(ctx, arn)
		if err != nil {
			if o.ContinueOnError {
				log.Error().Str("role", arn).Err(err).Msg("scoring failed, continuing")
				continue
			}
			return results, err
		}
		results = append(results, *rec)
	}
	return results, nil
}

func (o *Orchestrator) scoreRole(ctx context.Context, arn string) (*models.ScoreRecord, error) {
	metrics, err := o.extractor.ExtractMetrics(ctx, arn)
	if err != nil {
		return nil, fmt.Errorf("extracting metrics for %s: %w", arn, err)
	}
	score := Score(*metrics)

	rec := models.ScoreRecord{
		ARN:       arn,
		IEIScore:  score.IEI,
		PBScore:   score.PB,
		UIScore:   score.UI,
		Timestamp: o.now().UTC().Format(time.RFC3339),
	}
	if err := o.sink.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("emitting score for %s: %w", arn, err)
	}
	return &rec, nil
}
