package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hookbridge/hookbridge/internal/config"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/metrics"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/ratelimit"
	"github.com/hookbridge/hookbridge/internal/service"
	"github.com/hookbridge/hookbridge/internal/verifier"
)

// Pipeline is the slice of GatewayService the handler depends on.
type Pipeline interface {
	Process(ctx context.Context, env *models.Envelope) (*service.Result, error)
}

// WebhookHandler terminates the inbound HTTP contract: it identifies the
// source, authenticates the request, maps provider field names into an
// envelope, and hands the envelope to the pipeline.
type WebhookHandler struct {
	sources     map[string]config.SourceConfig
	verifier    *verifier.Registry
	pipeline    Pipeline
	limiter     ratelimit.RateLimiter
	logger      *logging.Logger
	maxBodySize int64
}

func NewWebhookHandler(sources []config.SourceConfig, reg *verifier.Registry, pipeline Pipeline, limiter ratelimit.RateLimiter, logger *logging.Logger, maxBodySize int64) *WebhookHandler {
	byName := make(map[string]config.SourceConfig, len(sources))
	for _, src := range sources {
		byName[src.Name] = src
	}
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if maxBodySize <= 0 {
		maxBodySize = 1048576
	}
	return &WebhookHandler{
		sources:     byName,
		verifier:    reg,
		pipeline:    pipeline,
		limiter:     limiter,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// HandleWebhook serves POST /webhooks/{source}.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sourceName := r.PathValue("source")
	src, ok := h.sources[sourceName]
	if !ok {
		h.sendError(w, http.StatusNotFound, models.CodeUnknownSource, "unknown source")
		return
	}

	allowed, err := h.limiter.Allow(ctx, sourceName, "ingest")
	if err != nil {
		// Rate limiting is an availability guard, not a correctness one:
		// if the limiter store is down the gateway keeps accepting.
		h.logger.WarnContext(ctx, "rate limiter unavailable",
			logging.Source(sourceName),
			logging.Error(err),
		)
		allowed = true
	}
	if !allowed {
		metrics.EventsTotal.WithLabelValues(sourceName, "rate_limited").Inc()
		h.sendError(w, http.StatusTooManyRequests, models.CodeRateLimited, "rate limit exceeded")
		return
	}

	// The body must be captured byte-for-byte: signatures are computed over
	// the exact bytes on the wire.
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, models.CodeMalformed, "failed to read body")
		return
	}
	defer r.Body.Close()

	if len(body) == 0 || int64(len(body)) > h.maxBodySize {
		h.sendError(w, http.StatusBadRequest, models.CodeMalformed, "body empty or too large")
		return
	}

	headers := flattenHeaders(r.Header)

	result, err := h.verifier.Verify(sourceName, headers, body, time.Now())
	if err != nil {
		// Never persist or log unauthenticated payload contents; only that
		// a rejection occurred.
		metrics.VerificationFailures.WithLabelValues(sourceName).Inc()
		metrics.EventsTotal.WithLabelValues(sourceName, "auth_failed").Inc()
		h.logger.WarnContext(ctx, "signature verification failed",
			logging.Source(sourceName),
			logging.IP(getClientIP(r)),
		)
		h.sendError(w, http.StatusUnauthorized, models.CodeUnauthorized, "signature verification failed")
		return
	}

	env, errCode := h.buildEnvelope(src, body, headers, result.Valid, getClientIP(r))
	if errCode != "" {
		metrics.EventsTotal.WithLabelValues(sourceName, "malformed").Inc()
		h.sendError(w, http.StatusBadRequest, errCode, "missing identifier or topic")
		return
	}

	metrics.EventBytesTotal.Add(float64(len(body)))

	res, err := h.pipeline.Process(ctx, env)
	if err != nil {
		var pipeErr *service.Error
		if errors.As(err, &pipeErr) {
			status := http.StatusInternalServerError
			if pipeErr.Code == models.CodeInvalidPayload {
				// Already claimed, audited, and dead-lettered; the caller
				// can act on the payload problem.
				status = http.StatusUnprocessableEntity
			}
			metrics.EventsTotal.WithLabelValues(sourceName, pipeErr.Code).Inc()
			h.sendError(w, status, pipeErr.Code, "event accepted but processing failed")
			return
		}
		metrics.EventsTotal.WithLabelValues(sourceName, "error").Inc()
		h.sendError(w, http.StatusInternalServerError, models.CodeRouteFailed, "processing failed")
		return
	}

	metrics.EventsTotal.WithLabelValues(sourceName, string(res.Status)).Inc()
	h.sendSuccess(w)
}

// buildEnvelope maps provider-specific field names into the pipeline's
// envelope. Returns a response code on malformed input.
func (h *WebhookHandler) buildEnvelope(src config.SourceConfig, body []byte, headers map[string]string, sigValid bool, ip string) (*models.Envelope, string) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, models.CodeMalformed
	}

	eventID := stringField(payload, src.EventIDField)
	if eventID == "" && src.EventIDHeader != "" {
		eventID = headers[http.CanonicalHeaderKey(src.EventIDHeader)]
	}
	if eventID == "" {
		// No identifier means no idempotency guarantee: reject before
		// anything is persisted.
		return nil, models.CodeMalformed
	}

	topic := stringField(payload, src.TopicField)
	if topic == "" {
		return nil, models.CodeMalformed
	}

	return &models.Envelope{
		Source:         src.Name,
		EventID:        eventID,
		Topic:          topic,
		Action:         stringField(payload, src.ActionField),
		RawBody:        body,
		Headers:        headers,
		Payload:        payload,
		SourceIP:       ip,
		SignatureValid: sigValid,
		ReceivedAt:     time.Now().UTC(),
	}, ""
}

func (h *WebhookHandler) sendSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.WebhookResponse{OK: true})
}

func (h *WebhookHandler) sendError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.WebhookResponse{OK: false, Code: code, Error: msg})
}

func stringField(payload map[string]any, field string) string {
	if field == "" {
		return ""
	}
	if v, ok := payload[field].(string); ok {
		return v
	}
	return ""
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
