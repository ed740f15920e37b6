package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/repository"
)

// IncidentHandler writes incident records for the "incident" topic.
type IncidentHandler struct {
	store repository.Store
}

func NewIncidentHandler(store repository.Store) *IncidentHandler {
	return &IncidentHandler{store: store}
}

func (h *IncidentHandler) Topic() string { return "incident" }

func (h *IncidentHandler) Handle(ctx context.Context, env *models.Envelope) error {
	fields, err := requireFields(h.Topic(), env.Payload, "system", "environment", "severity", "status", "title")
	if err != nil {
		return err
	}

	in := &models.Incident{
		ID:          uuid.New().String(),
		System:      fields["system"],
		Environment: fields["environment"],
		Severity:    fields["severity"],
		Status:      fields["status"],
		Title:       fields["title"],
		EventID:     env.EventID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.InsertIncident(ctx, in); err != nil {
		return fmt.Errorf("failed to write incident: %w", err)
	}
	return nil
}
