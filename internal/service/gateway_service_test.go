package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookbridge/hookbridge/internal/dlq"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/repository"
	"github.com/hookbridge/hookbridge/internal/router"
)

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func newTestService(store repository.Store) *GatewayService {
	reg := router.NewRegistry(
		router.NewDeploymentHandler(store),
		router.NewIncidentHandler(store),
	)
	return NewGatewayService(store, reg, dlq.NewStoreRecorder(store), testLogger())
}

func deployEnvelope(eventID string, payload map[string]any) *models.Envelope {
	raw, _ := json.Marshal(payload)
	return &models.Envelope{
		Source:         "deploy-platform",
		EventID:        eventID,
		Topic:          "deployment",
		Action:         "created",
		RawBody:        raw,
		Payload:        payload,
		SignatureValid: true,
		ReceivedAt:     time.Now().UTC(),
	}
}

func TestProcess_FullPipeline(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	res, err := svc.Process(context.Background(), deployEnvelope("evt_1", map[string]any{
		"system":      "billing-api",
		"environment": "production",
		"status":      "succeeded",
		"version":     "v2.4.1",
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, "evt_1", res.EventID)

	claims := store.Claims()
	require.Len(t, claims, 1)
	assert.Equal(t, "evt_1", claims[0].EventID)
	assert.Equal(t, "deployment", claims[0].Topic)
	assert.Len(t, claims[0].PayloadHash, 64)

	audits := store.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, "deployment", audits[0].Topic)
	assert.Equal(t, "deploy-platform", audits[0].Actor)
	assert.NotContains(t, audits[0].Payload, "signature_valid")

	require.Len(t, store.Deployments(), 1)
	assert.Empty(t, store.DeadLetters())
}

func TestProcess_Duplicate(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	env := deployEnvelope("evt_dup", map[string]any{
		"system":      "billing-api",
		"environment": "production",
		"status":      "succeeded",
	})

	res, err := svc.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)

	// Provider retry: same event ID again
	res, err = svc.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, res.Status)

	// The retry must not re-audit or re-route
	assert.Len(t, store.Audits(), 1)
	assert.Len(t, store.Deployments(), 1)
	assert.Empty(t, store.DeadLetters())
}

func TestProcess_ConcurrentSameEvent(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	const n = 16
	results := make([]Status, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := deployEnvelope("evt_race", map[string]any{
				"system":      "billing-api",
				"environment": "production",
				"status":      "succeeded",
			})
			res, err := svc.Process(context.Background(), env)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res.Status
		}(i)
	}
	wg.Wait()

	processed := 0
	for i, s := range results {
		require.NoError(t, errs[i])
		if s == StatusProcessed {
			processed++
		} else {
			assert.Equal(t, StatusDuplicate, s)
		}
	}
	assert.Equal(t, 1, processed, "exactly one request wins the claim")
	assert.Len(t, store.Audits(), 1)
	assert.Len(t, store.Deployments(), 1)
}

func TestProcess_InvalidPayload(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	_, err := svc.Process(context.Background(), deployEnvelope("evt_bad", map[string]any{
		"system": "billing-api",
		// environment and status missing
	}))
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.CodeInvalidPayload, perr.Code)
	assert.Equal(t, "invalid_payload:deployment", perr.Reason)

	var verr *router.ValidationError
	assert.ErrorAs(t, err, &verr)

	// Claimed and audited despite the validation failure
	assert.Len(t, store.Claims(), 1)
	assert.Len(t, store.Audits(), 1)
	assert.Empty(t, store.Deployments())

	letters := store.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, "evt_bad", letters[0].EventID)
	assert.Equal(t, "invalid_payload:deployment", letters[0].Reason)
	assert.JSONEq(t, string(deployEnvelope("evt_bad", map[string]any{"system": "billing-api"}).RawBody), string(letters[0].Payload))
}

func TestProcess_UnknownTopic(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	env := deployEnvelope("evt_billing", map[string]any{"amount": "120.00"})
	env.Topic = "billing"

	res, err := svc.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusAuditedOnly, res.Status)

	assert.Len(t, store.Claims(), 1)
	assert.Len(t, store.Audits(), 1)
	assert.Empty(t, store.DeadLetters())
}

func TestProcess_UnverifiedFlaggedInAudit(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	env := deployEnvelope("evt_unverified", map[string]any{
		"system":      "billing-api",
		"environment": "production",
		"status":      "succeeded",
	})
	env.SignatureValid = false

	res, err := svc.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)

	audits := store.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, false, audits[0].Payload["signature_valid"])

	// The envelope's own payload map is untouched
	assert.NotContains(t, env.Payload, "signature_valid")
}

// failingStore wraps InMemoryStore and fails selected operations.
type failingStore struct {
	*repository.InMemoryStore
	failClaim  bool
	failAudit  bool
	failDeploy bool
}

func (s *failingStore) InsertClaim(ctx context.Context, c *models.Claim) error {
	if s.failClaim {
		return errors.New("connection refused")
	}
	return s.InMemoryStore.InsertClaim(ctx, c)
}

func (s *failingStore) AppendAudit(ctx context.Context, r *models.AuditRecord) error {
	if s.failAudit {
		return errors.New("connection refused")
	}
	return s.InMemoryStore.AppendAudit(ctx, r)
}

func (s *failingStore) InsertDeployment(ctx context.Context, d *models.Deployment) error {
	if s.failDeploy {
		return errors.New("connection refused")
	}
	return s.InMemoryStore.InsertDeployment(ctx, d)
}

func validDeployEnvelope(eventID string) *models.Envelope {
	return deployEnvelope(eventID, map[string]any{
		"system":      "billing-api",
		"environment": "production",
		"status":      "succeeded",
	})
}

func TestProcess_ClaimFailure(t *testing.T) {
	store := &failingStore{InMemoryStore: repository.NewInMemoryStore(), failClaim: true}
	svc := newTestService(store)

	_, err := svc.Process(context.Background(), validDeployEnvelope("evt_cf"))
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.CodeClaimFailed, perr.Code)

	letters := store.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, models.ReasonClaimFailed, letters[0].Reason)
	assert.Empty(t, store.Audits())
}

func TestProcess_AuditFailure(t *testing.T) {
	store := &failingStore{InMemoryStore: repository.NewInMemoryStore(), failAudit: true}
	svc := newTestService(store)

	_, err := svc.Process(context.Background(), validDeployEnvelope("evt_af"))
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.CodeAuditFailed, perr.Code)

	// Claim stands: a provider retry will short-circuit as duplicate
	assert.Len(t, store.Claims(), 1)

	letters := store.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, models.ReasonAuditFailed, letters[0].Reason)
	assert.Empty(t, store.Deployments())
}

func TestProcess_RouteFailure(t *testing.T) {
	store := &failingStore{InMemoryStore: repository.NewInMemoryStore(), failDeploy: true}
	svc := newTestService(store)

	_, err := svc.Process(context.Background(), validDeployEnvelope("evt_rf"))
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.CodeRouteFailed, perr.Code)
	assert.Equal(t, "route_failed:deployment", perr.Reason)

	assert.Len(t, store.Claims(), 1)
	assert.Len(t, store.Audits(), 1)

	letters := store.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, "route_failed:deployment", letters[0].Reason)
}

type failingArchiver struct{ calls int }

func (a *failingArchiver) IndexAudit(ctx context.Context, r *models.AuditRecord) error {
	a.calls++
	return errors.New("index unavailable")
}

func TestProcess_ArchiverFailureIsNonFatal(t *testing.T) {
	store := repository.NewInMemoryStore()
	svc := newTestService(store)

	arch := &failingArchiver{}
	svc.SetArchiver(arch)

	res, err := svc.Process(context.Background(), validDeployEnvelope("evt_arch"))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, 1, arch.calls)
	assert.Empty(t, store.DeadLetters())
}
