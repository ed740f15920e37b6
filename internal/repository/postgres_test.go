package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hookbridge/hookbridge/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations
func setupTestDatabase(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("hookbridge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := NewPostgresStore(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return store, cleanup
}

// runMigrations runs SQL migrations from the migrations directory
func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	return nil
}

func testClaim(eventID string) *models.Claim {
	return &models.Claim{
		EventID:     eventID,
		Topic:       "deployment",
		Action:      "created",
		Source:      "deploy-platform",
		PayloadHash: "0000000000000000000000000000000000000000000000000000000000000000",
		ClaimedAt:   time.Now().UTC(),
	}
}

func TestInsertClaim(t *testing.T) {
	store, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.InsertClaim(ctx, testClaim("evt_claim_1")); err != nil {
		t.Fatalf("Unexpected error on first insert: %v", err)
	}

	// Same event ID again must surface the duplicate sentinel
	err := store.InsertClaim(ctx, testClaim("evt_claim_1"))
	if !errors.Is(err, ErrDuplicateClaim) {
		t.Errorf("Expected ErrDuplicateClaim, got %v", err)
	}

	// A different event ID is unaffected
	if err := store.InsertClaim(ctx, testClaim("evt_claim_2")); err != nil {
		t.Errorf("Unexpected error for distinct event ID: %v", err)
	}
}

func TestAppendAudit(t *testing.T) {
	store, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	record := &models.AuditRecord{
		ID:     "11111111-1111-1111-1111-111111111111",
		Topic:  "deployment",
		Action: "created",
		Actor:  "deploy-platform",
		Payload: map[string]any{
			"system":      "billing-api",
			"environment": "production",
			"status":      "succeeded",
		},
		RecordedAt: time.Now().UTC(),
	}

	if err := store.AppendAudit(ctx, record); err != nil {
		t.Fatalf("Failed to append audit record: %v", err)
	}

	// Appending a second record with a new ID must not conflict
	record.ID = "22222222-2222-2222-2222-222222222222"
	if err := store.AppendAudit(ctx, record); err != nil {
		t.Errorf("Failed to append second audit record: %v", err)
	}
}

func TestDeadLetters(t *testing.T) {
	store, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	entries := []*models.DeadLetter{
		{EventID: "evt_dl_1", Reason: "claim_failed", Payload: []byte(`{"id":"evt_dl_1"}`), RecordedAt: time.Now().UTC().Add(-2 * time.Minute)},
		{EventID: "evt_dl_2", Reason: "invalid_payload:deployment", Payload: []byte(`{"id":"evt_dl_2"}`), RecordedAt: time.Now().UTC().Add(-1 * time.Minute)},
		{EventID: "evt_dl_3", Reason: "invalid_payload:deployment", Payload: []byte(`{"id":"evt_dl_3"}`), RecordedAt: time.Now().UTC()},
	}
	for _, e := range entries {
		if err := store.AppendDeadLetter(ctx, e); err != nil {
			t.Fatalf("Failed to append dead letter: %v", err)
		}
	}

	listed, err := store.ListDeadLetters(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list dead letters: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 dead letters, got %d", len(listed))
	}
	// Most recent first
	if listed[0].EventID != "evt_dl_3" {
		t.Errorf("Expected evt_dl_3 first, got %s", listed[0].EventID)
	}

	stats, err := store.DeadLetterStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get dead letter stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected total 3, got %d", stats.Total)
	}
	if stats.ByReason["invalid_payload:deployment"] != 2 {
		t.Errorf("Expected 2 invalid_payload:deployment entries, got %d", stats.ByReason["invalid_payload:deployment"])
	}
}

func TestInsertDeployment(t *testing.T) {
	store, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	// Deployments reference the claim that admitted them
	if err := store.InsertClaim(ctx, testClaim("evt_deploy_1")); err != nil {
		t.Fatalf("Failed to insert claim: %v", err)
	}

	d := &models.Deployment{
		ID:          "33333333-3333-3333-3333-333333333333",
		System:      "billing-api",
		Environment: "production",
		Status:      "succeeded",
		Version:     "v2.4.1",
		EventID:     "evt_deploy_1",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.InsertDeployment(ctx, d); err != nil {
		t.Fatalf("Failed to insert deployment: %v", err)
	}
}

func TestInsertIncident(t *testing.T) {
	store, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.InsertClaim(ctx, testClaim("evt_incident_1")); err != nil {
		t.Fatalf("Failed to insert claim: %v", err)
	}

	in := &models.Incident{
		ID:          "44444444-4444-4444-4444-444444444444",
		System:      "edge-proxy",
		Environment: "production",
		Severity:    "sev2",
		Status:      "triggered",
		Title:       "elevated 5xx rate",
		EventID:     "evt_incident_1",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.InsertIncident(ctx, in); err != nil {
		t.Fatalf("Failed to insert incident: %v", err)
	}
}

func TestPing(t *testing.T) {
	store, cleanup := setupTestDatabase(t)
	defer cleanup()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
