package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hookbridge/hookbridge/internal/logging"
)

// StreamName is the JetStream stream capturing mirrored dead letters.
const StreamName = "HOOKBRIDGE_DLQ"

// Entry is the wire format published to the DLQ stream.
type Entry struct {
	EventID    string    `json:"event_id"`
	Reason     string    `json:"reason"`
	Payload    []byte    `json:"payload"`
	RecordedAt time.Time `json:"recorded_at"`
}

// JetStreamRecorder mirrors dead letters onto NATS JetStream so streaming
// replay consumers can subscribe by reason. The relational store remains the
// durable record; this is an operational fan-out, safe across instances.
type JetStreamRecorder struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewJetStreamRecorder connects to NATS and ensures the DLQ stream exists.
func NewJetStreamRecorder(ctx context.Context, natsURL string) (*JetStreamRecorder, error) {
	conn, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"hookbridge.dlq.>"},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create dlq stream: %w", err)
	}

	return &JetStreamRecorder{conn: conn, js: js, stream: stream}, nil
}

func (r *JetStreamRecorder) Record(ctx context.Context, eventID, reason string, payload []byte) {
	entry := Entry{
		EventID:    eventID,
		Reason:     reason,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("failed to marshal dlq entry",
			logging.EventID(eventID),
			logging.Error(err),
		)
		return
	}

	// Subject format: hookbridge.dlq.<reason>, with the reason's topic
	// suffix as its own token (invalid_payload:deployment →
	// hookbridge.dlq.invalid_payload.deployment).
	subject := "hookbridge.dlq." + strings.ReplaceAll(reason, ":", ".")

	if _, err := r.js.Publish(ctx, subject, data); err != nil {
		slog.Error("failed to publish dlq entry",
			logging.EventID(eventID),
			logging.Reason(reason),
			logging.Error(err),
		)
	}
}

func (r *JetStreamRecorder) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}
