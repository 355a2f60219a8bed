// Package planner composes shipments: reserved package quantities plus an
// ordered route of checkpoint-to-checkpoint segments.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trackchain/custody-service/internal/custody"
	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/internal/notify"
	"github.com/trackchain/custody-service/pkg/kafka"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/pkg/metrics"
	"github.com/trackchain/custody-service/store"
)

type Planner struct {
	store    store.Store
	producer kafka.Publisher
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

func NewPlanner(s store.Store, producer kafka.Publisher, notifier notify.Notifier,
	m *metrics.Metrics, log logger.Logger) *Planner {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Planner{
		store:    s,
		producer: producer,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// SegmentInput is one requested route leg.
type SegmentInput struct {
	Order                int
	StartCheckpointID    uuid.UUID
	EndCheckpointID      uuid.UUID
	ExpectedShipDate     time.Time
	EstimatedArrivalDate time.Time
	TimeToleranceHours   int
	RequiredAction       string
	OriginArea           string
	DestinationArea      string
}

// CreateShipmentInput is the full creation request.
type CreateShipmentInput struct {
	ManufacturerOrgID uuid.UUID
	DestinationOrgID  uuid.UUID
	Items             []models.ShipmentItem
	Segments          []SegmentInput
}

// CreateShipment validates the request and commits shipment, segments and
// inventory decrements all-or-nothing. The store re-checks availability under
// lock, so of two concurrent creations overdrawing the same package exactly
// one succeeds.
func (p *Planner) CreateShipment(ctx context.Context, in CreateShipmentInput) (models.Shipment, error) {
	start := p.now()

	if in.ManufacturerOrgID == uuid.Nil || in.DestinationOrgID == uuid.Nil {
		return models.Shipment{}, fmt.Errorf("%w: manufacturer and destination organizations are required",
			domainerrors.ErrValidation)
	}
	if len(in.Items) == 0 {
		return models.Shipment{}, fmt.Errorf("%w: shipment needs at least one item", domainerrors.ErrValidation)
	}
	requested := make(map[uuid.UUID]int64)
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return models.Shipment{}, fmt.Errorf("%w: item quantity must be a positive integer",
				domainerrors.ErrValidation)
		}
		requested[item.PackageID] += item.Quantity
	}
	// Advisory pre-check over the per-package totals; the commit re-verifies
	// under lock.
	for packageID, quantity := range requested {
		pkg, err := p.store.GetPackage(ctx, packageID)
		if err != nil {
			return models.Shipment{}, err
		}
		if quantity > pkg.QuantityAvailable {
			return models.Shipment{}, fmt.Errorf("%w: package %s has %d available, requested %d",
				domainerrors.ErrInsufficientInventory, pkg.PackageCode, pkg.QuantityAvailable, quantity)
		}
	}

	segments, err := p.buildRoute(ctx, uuid.Nil, in.DestinationOrgID, in.Segments)
	if err != nil {
		return models.Shipment{}, err
	}

	shipment := models.Shipment{
		ID:                uuid.New(),
		ManufacturerOrgID: in.ManufacturerOrgID,
		DestinationOrgID:  in.DestinationOrgID,
		Items:             in.Items,
		Segments:          segments,
		CreatedAt:         p.now(),
	}
	for i := range shipment.Segments {
		shipment.Segments[i].ShipmentID = shipment.ID
	}

	created, err := p.store.CreateShipment(ctx, shipment)
	if err != nil {
		if p.metrics != nil && isInsufficient(err) {
			p.metrics.InventoryConflicts.Inc()
		}
		return models.Shipment{}, err
	}

	if p.metrics != nil {
		p.metrics.ShipmentsCreated.Inc()
		p.metrics.CreateShipmentTime.Observe(p.now().Sub(start).Seconds())
	}
	p.log.Info("shipment created", "shipment_id", created.ID,
		"manufacturer_org", created.ManufacturerOrgID, "segments", len(created.Segments))

	p.publishEvent(created.ID, "shipment.created")
	if first := created.SegmentByOrder(1); first != nil {
		if err := p.notifier.SegmentPending(ctx, *first); err != nil {
			p.log.Warn("pending-segment notification failed", "segment_id", first.ID, "error", err)
		}
	}
	return created, nil
}

// UpdatePlanInput replaces destination and route while still PREPARING.
type UpdatePlanInput struct {
	DestinationOrgID uuid.UUID
	Segments         []SegmentInput
}

// UpdateShipment swaps the destination party and the full segment list. Valid
// only while no segment has left PENDING_ACCEPTANCE; the store re-verifies
// that under lock.
func (p *Planner) UpdateShipment(ctx context.Context, shipmentID uuid.UUID, in UpdatePlanInput) (models.Shipment, error) {
	if in.DestinationOrgID == uuid.Nil {
		return models.Shipment{}, fmt.Errorf("%w: destination organization is required", domainerrors.ErrValidation)
	}

	current, err := p.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return models.Shipment{}, err
	}
	if status := custody.DeriveShipmentStatus(current.Segments); status != models.ShipmentPreparing {
		return models.Shipment{}, fmt.Errorf("%w: shipment is %s", domainerrors.ErrInvalidState, status)
	}

	segments, err := p.buildRoute(ctx, shipmentID, in.DestinationOrgID, in.Segments)
	if err != nil {
		return models.Shipment{}, err
	}

	updated, err := p.store.ReplaceShipmentPlan(ctx, shipmentID, in.DestinationOrgID, segments)
	if err != nil {
		return models.Shipment{}, err
	}
	p.log.Info("shipment plan replaced", "shipment_id", shipmentID, "segments", len(segments))
	p.publishEvent(shipmentID, "shipment.updated")
	if first := updated.SegmentByOrder(1); first != nil {
		if err := p.notifier.SegmentPending(ctx, *first); err != nil {
			p.log.Warn("pending-segment notification failed", "segment_id", first.ID, "error", err)
		}
	}
	return updated, nil
}

func (p *Planner) GetShipment(ctx context.Context, id uuid.UUID) (models.Shipment, error) {
	return p.store.GetShipment(ctx, id)
}

// ListShipments pages shipments newest-first, optionally narrowed to a
// manufacturer and a derived status. Status is computed per shipment, so
// filtered listings keep fetching pages until the limit is satisfied.
func (p *Planner) ListShipments(ctx context.Context, manufacturerOrgID *uuid.UUID,
	status models.ShipmentStatus, cursor *uuid.UUID, limit int) ([]models.Shipment, error) {
	if limit <= 0 {
		limit = 50
	}

	var result []models.Shipment
	for {
		page, err := p.store.ListShipments(ctx, store.ShipmentFilter{
			ManufacturerOrgID: manufacturerOrgID,
			Cursor:            cursor,
			Limit:             limit,
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return result, nil
		}
		for _, sh := range page {
			if status != "" && custody.DeriveShipmentStatus(sh.Segments) != status {
				continue
			}
			result = append(result, sh)
			if len(result) == limit {
				return result, nil
			}
		}
		last := page[len(page)-1].ID
		cursor = &last
	}
}

// buildRoute validates segment inputs and materializes the route. shipmentID
// may be uuid.Nil during creation; ids are stamped by the caller afterwards.
func (p *Planner) buildRoute(ctx context.Context, shipmentID uuid.UUID,
	destinationOrgID uuid.UUID, inputs []SegmentInput) ([]models.Segment, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: shipment needs at least one segment", domainerrors.ErrValidation)
	}

	sorted := append([]SegmentInput(nil), inputs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for i, in := range sorted {
		if in.Order != i+1 {
			return nil, fmt.Errorf("%w: segment orders must form a contiguous sequence starting at 1",
				domainerrors.ErrValidation)
		}
	}

	segments := make([]models.Segment, 0, len(sorted))
	for i, in := range sorted {
		startCp, err := p.store.GetCheckpoint(ctx, in.StartCheckpointID)
		if err != nil {
			return nil, err
		}
		if _, err := p.store.GetCheckpoint(ctx, in.EndCheckpointID); err != nil {
			return nil, err
		}

		// Owner: the org operating the start checkpoint, except the final
		// leg, which the destination party carries.
		owner := startCp.OwnerOrgID
		if i == len(sorted)-1 {
			owner = destinationOrgID
		}

		status := models.SegmentPreparing
		if in.Order == 1 {
			status = models.SegmentPendingAcceptance
		}

		segments = append(segments, models.Segment{
			ID:                   uuid.New(),
			ShipmentID:           shipmentID,
			Order:                in.Order,
			StartCheckpointID:    in.StartCheckpointID,
			EndCheckpointID:      in.EndCheckpointID,
			ExpectedShipDate:     in.ExpectedShipDate,
			EstimatedArrivalDate: in.EstimatedArrivalDate,
			TimeToleranceHours:   in.TimeToleranceHours,
			RequiredAction:       in.RequiredAction,
			Status:               status,
			OwnerOrgID:           owner,
			OriginArea:           in.OriginArea,
			DestinationArea:      in.DestinationArea,
		})
	}

	// Legs may legitimately hand over at an unmodeled hub, but a gap in the
	// route usually means a planning mistake, so surface it.
	for i := 1; i < len(segments); i++ {
		if segments[i].StartCheckpointID != segments[i-1].EndCheckpointID {
			p.log.Warn("route gap between consecutive segments",
				"order", segments[i].Order,
				"previous_end", segments[i-1].EndCheckpointID,
				"next_start", segments[i].StartCheckpointID)
		}
	}
	return segments, nil
}

func (p *Planner) publishEvent(shipmentID uuid.UUID, event string) {
	if p.producer == nil {
		return
	}
	payload := map[string]interface{}{
		"event":       event,
		"shipment_id": shipmentID.String(),
	}
	go p.producer.Publish(context.Background(), shipmentID.String(), payload)
}

func isInsufficient(err error) bool {
	return errors.Is(err, domainerrors.ErrInsufficientInventory)
}
