// Package checkpoint manages the registry of physical locations usable as
// segment boundaries.
package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/store"
)

// Registry validates and stores checkpoints. There is no update or delete:
// a checkpoint referenced by any segment must stay exactly as planned.
type Registry struct {
	store store.CheckpointStore
	log   logger.Logger
}

func NewRegistry(s store.CheckpointStore, log logger.Logger) *Registry {
	return &Registry{store: s, log: log}
}

// CreateCheckpointInput is the validated creation request.
type CreateCheckpointInput struct {
	Name       string
	Address    string
	Latitude   float64
	Longitude  float64
	Country    string
	State      string
	City       string
	OwnerOrgID uuid.UUID
}

func (r *Registry) Create(ctx context.Context, in CreateCheckpointInput) (models.Checkpoint, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Checkpoint{}, fmt.Errorf("%w: checkpoint name is required", domainerrors.ErrValidation)
	}
	if strings.TrimSpace(in.Address) == "" {
		return models.Checkpoint{}, fmt.Errorf("%w: checkpoint address is required", domainerrors.ErrValidation)
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return models.Checkpoint{}, fmt.Errorf("%w: latitude %f out of range", domainerrors.ErrValidation, in.Latitude)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return models.Checkpoint{}, fmt.Errorf("%w: longitude %f out of range", domainerrors.ErrValidation, in.Longitude)
	}
	if strings.TrimSpace(in.Country) == "" {
		return models.Checkpoint{}, fmt.Errorf("%w: checkpoint country is required", domainerrors.ErrValidation)
	}
	if in.OwnerOrgID == uuid.Nil {
		return models.Checkpoint{}, fmt.Errorf("%w: owner organization is required", domainerrors.ErrValidation)
	}

	cp := models.Checkpoint{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Country:    strings.TrimSpace(in.Country),
		State:      strings.TrimSpace(in.State),
		City:       strings.TrimSpace(in.City),
		OwnerOrgID: in.OwnerOrgID,
	}
	created, err := r.store.CreateCheckpoint(ctx, cp)
	if err != nil {
		return models.Checkpoint{}, err
	}
	r.log.Info("checkpoint registered", "checkpoint_id", created.ID, "owner_org", created.OwnerOrgID)
	return created, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (models.Checkpoint, error) {
	return r.store.GetCheckpoint(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]models.Checkpoint, error) {
	return r.store.ListCheckpoints(ctx)
}

func (r *Registry) ListByOwner(ctx context.Context, ownerOrgID uuid.UUID) ([]models.Checkpoint, error) {
	return r.store.ListCheckpointsByOwner(ctx, ownerOrgID)
}
