package recorder

import (
	"context"

	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/metrics"
	"github.com/bayardlab/bayard-gateway/internal/storage/models"
)

// DurableStore persists completed runs.
type DurableStore interface {
	InsertRun(ctx context.Context, run *models.Run) error
}

// EphemeralStore holds feedback records until their TTL elapses.
type EphemeralStore interface {
	RecordFeedback(ctx context.Context, fb *models.FeedbackRecord) error
}

// Recorder persists interaction outcomes on a best-effort basis. Storage
// faults are logged and counted, never returned to the response path:
// RecordRun and RecordFeedback report failure to the caller only so it
// can be discarded deliberately.
type Recorder struct {
	durable   DurableStore
	ephemeral EphemeralStore
	logger    *zap.Logger
}

func New(durable DurableStore, ephemeral EphemeralStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{durable: durable, ephemeral: ephemeral, logger: logger}
}

// RecordRun writes the run to the durable store. Returns false on
// failure; the interaction outcome is unaffected either way.
func (r *Recorder) RecordRun(ctx context.Context, run *models.Run) bool {
	if err := r.durable.InsertRun(ctx, run); err != nil {
		r.logger.Error("Error storing run in the database",
			zap.Error(err),
			zap.String("run_id", run.RunID),
			zap.String("input_text", run.InputText),
		)
		metrics.PersistenceFailures.WithLabelValues("runs").Inc()
		return false
	}
	return true
}

// RecordFeedback writes the feedback record to the ephemeral store.
func (r *Recorder) RecordFeedback(ctx context.Context, fb *models.FeedbackRecord) bool {
	if err := r.ephemeral.RecordFeedback(ctx, fb); err != nil {
		r.logger.Error("Error storing feedback rating",
			zap.Error(err),
			zap.String("feedback_id", fb.FeedbackID),
			zap.String("run_id", fb.RunID),
		)
		metrics.PersistenceFailures.WithLabelValues("feedback").Inc()
		return false
	}
	return true
}
