package repository

import (
	"context"
	"errors"

	"github.com/hookbridge/hookbridge/internal/models"
)

// ErrDuplicateClaim is returned by InsertClaim when the event ID is already
// claimed. Callers rely on this classification to tell an expected provider
// retry apart from a real persistence failure; it is derived from the store's
// structured error signal, never from error message text.
var ErrDuplicateClaim = errors.New("event already claimed")

// Store is the durable collaborator behind the gateway. Each write commits
// independently; the gateway never asks the store for a multi-row transaction.
type Store interface {
	// InsertClaim inserts the uniquely-keyed idempotency row.
	// Returns ErrDuplicateClaim when event_id is already claimed.
	InsertClaim(ctx context.Context, claim *models.Claim) error

	// AppendAudit appends one ledger row. No update or delete path exists.
	AppendAudit(ctx context.Context, record *models.AuditRecord) error

	// AppendDeadLetter appends one dead-letter row. event_id is non-unique:
	// a retried event can dead-letter once per distinct failure stage.
	AppendDeadLetter(ctx context.Context, entry *models.DeadLetter) error

	// ListDeadLetters returns the most recent dead letters.
	ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error)

	// DeadLetterStats counts dead letters by reason.
	DeadLetterStats(ctx context.Context) (*models.DLQStats, error)

	// Domain writes performed by topic handlers.
	InsertDeployment(ctx context.Context, d *models.Deployment) error
	InsertIncident(ctx context.Context, in *models.Incident) error

	Ping(ctx context.Context) error
	Close()
}
