package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookbridge/hookbridge/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Connection pool configuration
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) InsertClaim(ctx context.Context, claim *models.Claim) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO claims (event_id, topic, action, source, payload_hash, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		claim.EventID, claim.Topic, claim.Action, claim.Source,
		claim.PayloadHash, claim.ClaimedAt,
	)

	if err != nil {
		// Unique constraint violation (23505) is the expected duplicate
		// signal; everything else is a real failure.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateClaim
		}
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	return nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, record *models.AuditRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_records (id, topic, action, actor, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		record.ID, record.Topic, record.Action, record.Actor,
		payload, record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

func (s *PostgresStore) AppendDeadLetter(ctx context.Context, entry *models.DeadLetter) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO dead_letters (event_id, reason, payload, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.EventID, entry.Reason, entry.Payload, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append dead letter: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_id, reason, payload, recorded_at
		FROM dead_letters
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var entries []models.DeadLetter
	for rows.Next() {
		var e models.DeadLetter
		if err := rows.Scan(&e.ID, &e.EventID, &e.Reason, &e.Payload, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", rows.Err())
	}

	return entries, nil
}

func (s *PostgresStore) DeadLetterStats(ctx context.Context) (*models.DLQStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT reason, COUNT(*)
		FROM dead_letters
		GROUP BY reason
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count dead letters: %w", err)
	}
	defer rows.Close()

	stats := &models.DLQStats{ByReason: make(map[string]int64)}
	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter count: %w", err)
		}
		stats.ByReason[reason] = count
		stats.Total += count
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to read dead letter counts: %w", rows.Err())
	}

	return stats, nil
}

func (s *PostgresStore) InsertDeployment(ctx context.Context, d *models.Deployment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO deployments (id, system, environment, status, version, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.System, d.Environment, d.Status, d.Version, d.EventID, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deployment: %w", err)
	}

	return nil
}

func (s *PostgresStore) InsertIncident(ctx context.Context, in *models.Incident) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO incidents (id, system, environment, severity, status, title, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		in.ID, in.System, in.Environment, in.Severity, in.Status, in.Title, in.EventID, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}

	return nil
}
