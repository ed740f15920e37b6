package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/repository"
)

// DeploymentHandler writes deployment records for the "deployment" topic.
type DeploymentHandler struct {
	store repository.Store
}

func NewDeploymentHandler(store repository.Store) *DeploymentHandler {
	return &DeploymentHandler{store: store}
}

func (h *DeploymentHandler) Topic() string { return "deployment" }

func (h *DeploymentHandler) Handle(ctx context.Context, env *models.Envelope) error {
	fields, err := requireFields(h.Topic(), env.Payload, "system", "environment", "status")
	if err != nil {
		return err
	}

	d := &models.Deployment{
		ID:          uuid.New().String(),
		System:      fields["system"],
		Environment: fields["environment"],
		Status:      fields["status"],
		Version:     optionalField(env.Payload, "version"),
		EventID:     env.EventID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.InsertDeployment(ctx, d); err != nil {
		return fmt.Errorf("failed to write deployment: %w", err)
	}
	return nil
}
