package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trackchain/custody-service/internal/models"
)

// The store interfaces specify what the service layer can ask of storage.
// Both the Postgres store and the in-memory store implement all of them.
//
// The transition methods (Accept/TakeOver/Handover/Reject) are the only
// writers of Segment.status. Each performs its compare-and-swap and every
// companion write (activating the next leg, completing the previous one,
// releasing inventory) atomically: a failed guard returns
// domain ErrConflict and leaves nothing changed.

// CheckpointStore persists registered physical locations.
type CheckpointStore interface {
	CreateCheckpoint(ctx context.Context, cp models.Checkpoint) (models.Checkpoint, error)
	GetCheckpoint(ctx context.Context, id uuid.UUID) (models.Checkpoint, error)
	ListCheckpoints(ctx context.Context) ([]models.Checkpoint, error)
	ListCheckpointsByOwner(ctx context.Context, ownerOrgID uuid.UUID) ([]models.Checkpoint, error)
}

// CatalogStore persists the category -> product -> batch -> package hierarchy.
type CatalogStore interface {
	CreateCategory(ctx context.Context, c models.ProductCategory) (models.ProductCategory, error)
	GetCategory(ctx context.Context, id uuid.UUID) (models.ProductCategory, error)
	ListCategories(ctx context.Context) ([]models.ProductCategory, error)

	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (models.Product, error)
	ListProducts(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error)

	CreateBatch(ctx context.Context, b models.Batch) (models.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (models.Batch, error)
	ListBatches(ctx context.Context, productID *uuid.UUID) ([]models.Batch, error)

	CreatePackage(ctx context.Context, p models.Package) (models.Package, error)
	GetPackage(ctx context.Context, id uuid.UUID) (models.Package, error)
	ListPackages(ctx context.Context, batchID *uuid.UUID) ([]models.Package, error)
}

// ShipmentFilter narrows and paginates shipment listings. Cursor is the id
// of the last shipment of the previous page (keyset over created_at, id).
type ShipmentFilter struct {
	ManufacturerOrgID *uuid.UUID
	Cursor            *uuid.UUID
	Limit             int
}

// ShipmentStore persists shipments and drives segment custody transitions.
type ShipmentStore interface {
	// CreateShipment persists the shipment and its segments and decrements
	// quantityAvailable on each referenced package, all-or-nothing. Returns
	// domain ErrInsufficientInventory if any item overdraws its package at
	// commit time (re-checked under lock).
	CreateShipment(ctx context.Context, s models.Shipment) (models.Shipment, error)

	GetShipment(ctx context.Context, id uuid.UUID) (models.Shipment, error)
	ListShipments(ctx context.Context, f ShipmentFilter) ([]models.Shipment, error)

	// ReplaceShipmentPlan swaps destination and the full segment list, valid
	// only while no segment has left PENDING_ACCEPTANCE (re-verified under
	// lock, domain ErrInvalidState otherwise).
	ReplaceShipmentPlan(ctx context.Context, shipmentID uuid.UUID, destinationOrgID uuid.UUID, segments []models.Segment) (models.Shipment, error)

	GetSegment(ctx context.Context, id uuid.UUID) (models.Segment, error)
	ListPendingSegments(ctx context.Context, ownerOrgID uuid.UUID) ([]models.Segment, error)

	// AcceptSegment: PENDING_ACCEPTANCE -> ACCEPTED. Atomically completes a
	// HANDOVER_READY predecessor and activates a PREPARING successor.
	AcceptSegment(ctx context.Context, segmentID uuid.UUID, at time.Time) (models.Shipment, error)

	// TakeOverSegment: ACCEPTED -> IN_TRANSIT, recording the location observation.
	TakeOverSegment(ctx context.Context, segmentID uuid.UUID, loc models.GeoPoint, at time.Time) (models.Segment, error)

	// HandoverSegment: IN_TRANSIT -> HANDOVER_READY, or straight to
	// HANDOVER_COMPLETE when final is set (last leg, delivery).
	HandoverSegment(ctx context.Context, segmentID uuid.UUID, loc models.GeoPoint, at time.Time, final bool) (models.Segment, error)

	// RejectSegment: PENDING_ACCEPTANCE -> REJECTED, releasing every quantity
	// the parent shipment reserved back to its packages.
	RejectSegment(ctx context.Context, segmentID uuid.UUID, reason string, at time.Time) (models.Shipment, error)
}

// Store is the full storage surface the service wires up.
type Store interface {
	CheckpointStore
	CatalogStore
	ShipmentStore
}
