package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/metrics"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/repository"
)

// Recorder captures the original payload of an accepted event whose
// post-claim processing failed. Recording is best-effort: it runs inside
// already-failing paths, so its own failure is logged and never propagated.
type Recorder interface {
	Record(ctx context.Context, eventID, reason string, payload []byte)
}

// StoreRecorder writes dead letters to the relational dead_letters table.
type StoreRecorder struct {
	store repository.Store
}

func NewStoreRecorder(store repository.Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, eventID, reason string, payload []byte) {
	entry := &models.DeadLetter{
		EventID:    eventID,
		Reason:     reason,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	}

	if err := r.store.AppendDeadLetter(ctx, entry); err != nil {
		slog.Error("failed to write dead letter",
			logging.EventID(eventID),
			logging.Reason(reason),
			logging.Error(err),
		)
		return
	}

	metrics.DeadLettersTotal.WithLabelValues(reason).Inc()
	slog.Info("dead letter recorded",
		logging.EventID(eventID),
		logging.Reason(reason),
	)
}

// MultiRecorder fans a dead letter out to every recorder. Used when the
// jetstream backend mirrors the durable store for streaming consumers.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, eventID, reason string, payload []byte) {
	for _, r := range m {
		r.Record(ctx, eventID, reason, payload)
	}
}
