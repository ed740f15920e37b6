package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hookbridge/hookbridge/internal/dlq"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/metrics"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/repository"
	"github.com/hookbridge/hookbridge/internal/router"
)

// Status is the terminal outcome of a successfully handled envelope.
type Status string

const (
	// StatusProcessed means the event was claimed, audited, and routed to a
	// topic handler that performed its domain write.
	StatusProcessed Status = "processed"

	// StatusDuplicate means another request already owns this event ID.
	// Expected for provider retries; nothing was re-audited or re-routed.
	StatusDuplicate Status = "duplicate"

	// StatusAuditedOnly means the event was claimed and audited but no
	// handler is registered for its topic yet.
	StatusAuditedOnly Status = "audited_only"
)

// Result reports the pipeline outcome for one envelope.
type Result struct {
	Status  Status `json:"status"`
	EventID string `json:"event_id"`
}

// Error classifies a pipeline failure downstream of a successful claim (or
// the claim itself). Code is the stable machine-readable response code;
// Reason is the dead-letter reason already recorded when the error surfaced.
type Error struct {
	Code   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Archiver indexes accepted audit records for operational search.
// Indexing is best-effort and never affects the pipeline outcome.
type Archiver interface {
	IndexAudit(ctx context.Context, record *models.AuditRecord) error
}

// GatewayService runs the claim → audit → route pipeline. It holds no
// mutable per-event state: the store's uniqueness constraint is the only
// synchronization, so any number of instances can run concurrently.
type GatewayService struct {
	store   repository.Store
	topics  *router.Registry
	dlq     dlq.Recorder
	archive Archiver
	logger  *logging.Logger
}

func NewGatewayService(store repository.Store, topics *router.Registry, recorder dlq.Recorder, logger *logging.Logger) *GatewayService {
	return &GatewayService{
		store:  store,
		topics: topics,
		dlq:    recorder,
		logger: logger,
	}
}

// SetArchiver enables audit record archiving.
func (s *GatewayService) SetArchiver(a Archiver) {
	s.archive = a
}

// Process runs one verified envelope through the pipeline. The caller has
// already authenticated the request; nothing here rejects, it only claims,
// audits, routes, and dead-letters.
func (s *GatewayService) Process(ctx context.Context, env *models.Envelope) (*Result, error) {
	hash := sha256.Sum256(env.RawBody)

	claim := &models.Claim{
		EventID:     env.EventID,
		Topic:       env.Topic,
		Action:      env.Action,
		Source:      env.Source,
		PayloadHash: hex.EncodeToString(hash[:]),
		ClaimedAt:   time.Now().UTC(),
	}

	claimStart := time.Now()
	err := s.store.InsertClaim(ctx, claim)
	metrics.StageDuration.WithLabelValues("claim").Observe(time.Since(claimStart).Seconds())

	if errors.Is(err, repository.ErrDuplicateClaim) {
		metrics.DuplicateEvents.WithLabelValues(env.Source).Inc()
		s.logger.InfoContext(ctx, "duplicate event, no-op",
			logging.EventID(env.EventID),
			logging.Source(env.Source),
			logging.Topic(env.Topic),
		)
		return &Result{Status: StatusDuplicate, EventID: env.EventID}, nil
	}
	if err != nil {
		// The event was never durably claimed; the caller should retry.
		s.logger.ErrorContext(ctx, "claim failed",
			logging.EventID(env.EventID),
			logging.Source(env.Source),
			logging.Error(err),
		)
		s.dlq.Record(ctx, env.EventID, models.ReasonClaimFailed, env.RawBody)
		return nil, &Error{Code: models.CodeClaimFailed, Reason: models.ReasonClaimFailed, Err: err}
	}

	s.logger.InfoContext(ctx, "event claimed",
		logging.EventID(env.EventID),
		logging.Source(env.Source),
		logging.Topic(env.Topic),
		logging.Action(env.Action),
	)

	// Audit precedes effect: the acceptance must be durable before routing
	// is attempted.
	record := s.buildAuditRecord(env)

	auditStart := time.Now()
	err = s.store.AppendAudit(ctx, record)
	metrics.StageDuration.WithLabelValues("audit").Observe(time.Since(auditStart).Seconds())

	if err != nil {
		// Claimed but not audited is a valid transient state reconciled by
		// DLQ-driven replay; a provider retry will short-circuit on the
		// claim and must not re-audit here.
		s.logger.ErrorContext(ctx, "audit failed",
			logging.EventID(env.EventID),
			logging.Source(env.Source),
			logging.Error(err),
		)
		s.dlq.Record(ctx, env.EventID, models.ReasonAuditFailed, env.RawBody)
		return nil, &Error{Code: models.CodeAuditFailed, Reason: models.ReasonAuditFailed, Err: err}
	}

	s.logger.InfoContext(ctx, "event audited",
		logging.EventID(env.EventID),
		logging.Topic(env.Topic),
	)

	if s.archive != nil {
		if err := s.archive.IndexAudit(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "audit archive indexing failed",
				logging.EventID(env.EventID),
				logging.Error(err),
			)
		}
	}

	return s.route(ctx, env)
}

func (s *GatewayService) route(ctx context.Context, env *models.Envelope) (*Result, error) {
	handler := s.topics.Find(env.Topic)
	if handler == nil {
		// Unknown topics degrade gracefully: accepted and audited, waiting
		// for handler code to be deployed.
		metrics.UnroutedTopics.WithLabelValues(env.Topic).Inc()
		s.logger.WarnContext(ctx, "audited only, no handler for topic",
			logging.EventID(env.EventID),
			logging.Topic(env.Topic),
			logging.Source(env.Source),
		)
		return &Result{Status: StatusAuditedOnly, EventID: env.EventID}, nil
	}

	routeStart := time.Now()
	err := handler.Handle(ctx, env)
	metrics.StageDuration.WithLabelValues("route").Observe(time.Since(routeStart).Seconds())

	if err != nil {
		var valErr *router.ValidationError
		if errors.As(err, &valErr) {
			reason := models.ReasonInvalidPayload + ":" + env.Topic
			s.logger.WarnContext(ctx, "payload failed topic validation",
				logging.EventID(env.EventID),
				logging.Topic(env.Topic),
				logging.Error(err),
			)
			s.dlq.Record(ctx, env.EventID, reason, env.RawBody)
			return nil, &Error{Code: models.CodeInvalidPayload, Reason: reason, Err: err}
		}

		reason := models.ReasonRouteFailed + ":" + env.Topic
		s.logger.ErrorContext(ctx, "topic handler failed",
			logging.EventID(env.EventID),
			logging.Topic(env.Topic),
			logging.Error(err),
		)
		s.dlq.Record(ctx, env.EventID, reason, env.RawBody)
		return nil, &Error{Code: models.CodeRouteFailed, Reason: reason, Err: err}
	}

	s.logger.InfoContext(ctx, "event routed",
		logging.EventID(env.EventID),
		logging.Topic(env.Topic),
		logging.Action(env.Action),
	)

	return &Result{Status: StatusProcessed, EventID: env.EventID}, nil
}

func (s *GatewayService) buildAuditRecord(env *models.Envelope) *models.AuditRecord {
	payload := make(map[string]any, len(env.Payload)+1)
	for k, v := range env.Payload {
		payload[k] = v
	}
	if !env.SignatureValid {
		// Flag unauthenticated acceptances for later audit review.
		payload["signature_valid"] = false
		metrics.UnverifiedAccepted.WithLabelValues(env.Source).Inc()
	}

	return &models.AuditRecord{
		ID:         uuid.New().String(),
		Topic:      env.Topic,
		Action:     env.Action,
		Actor:      env.Source,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	}
}
