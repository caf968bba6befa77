// Package sink delivers scoring results to a downstream metrics store.
package sink

import (
	"context"

	"github.com/org/exposuregraph/pkg/models"
	"github.com/rs/zerolog/log"
)

// Sink receives one record per scored role.
type Sink interface {
	Put(ctx context.Context, rec models.ScoreRecord) error
	Close()
}

// LogSink writes score records to the structured log. Used in development and
// when no downstream store is configured.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Put(_ context.Context, rec models.ScoreRecord) error {
	log.Info().
		Str("arn", rec.ARN).
		Float64("iei_score", rec.IEIScore).
		Float64("pb_score", rec.PBScore).
		Float64("ui_score", rec.UIScore).
		Str("timestamp", rec.Timestamp).
		Msg("role scored")
	return nil
}

func (s *LogSink) Close() {}
