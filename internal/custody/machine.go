// Package custody advances shipment segments through their lifecycle:
//
//	PENDING_ACCEPTANCE -> ACCEPTED -> IN_TRANSIT -> HANDOVER_READY -> HANDOVER_COMPLETE
//
// with REJECTED reachable only from PENDING_ACCEPTANCE. Every transition
// re-validates actor and state, then delegates the write to the store's
// compare-and-swap so two concurrent calls can never double-advance a leg.
package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trackchain/custody-service/internal/area"
	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/internal/notify"
	"github.com/trackchain/custody-service/pkg/kafka"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/pkg/metrics"
	"github.com/trackchain/custody-service/store"
)

type Machine struct {
	store       store.ShipmentStore
	checkpoints store.CheckpointStore
	producer    kafka.Publisher
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	log         logger.Logger
	now         func() time.Time
}

func NewMachine(s store.ShipmentStore, cps store.CheckpointStore, producer kafka.Publisher,
	notifier notify.Notifier, m *metrics.Metrics, log logger.Logger) *Machine {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Machine{
		store:       s,
		checkpoints: cps,
		producer:    producer,
		notifier:    notifier,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// Accept moves a segment from PENDING_ACCEPTANCE to ACCEPTED. As the same
// atomic write, a HANDOVER_READY predecessor completes (the acceptance is its
// acknowledgment) and a PREPARING successor opens for acceptance.
func (m *Machine) Accept(ctx context.Context, segmentID uuid.UUID, actorOrgID uuid.UUID) (models.Shipment, error) {
	seg, err := m.store.GetSegment(ctx, segmentID)
	if err != nil {
		return models.Shipment{}, err
	}
	if seg.OwnerOrgID != actorOrgID {
		return models.Shipment{}, fmt.Errorf("%w: segment %s belongs to org %s",
			domainerrors.ErrUnauthorizedTransition, segmentID, seg.OwnerOrgID)
	}
	if seg.Status != models.SegmentPendingAcceptance {
		// Retry of an accept that already went through is a no-op.
		if seg.Status == models.SegmentAccepted {
			return m.store.GetShipment(ctx, seg.ShipmentID)
		}
		return models.Shipment{}, fmt.Errorf("%w: cannot accept segment in state %s",
			domainerrors.ErrInvalidTransition, seg.Status)
	}

	shipment, err := m.store.AcceptSegment(ctx, segmentID, m.now())
	if err != nil {
		return models.Shipment{}, err
	}
	m.recordTransition("accept")
	m.log.Info("segment accepted", "segment_id", segmentID, "shipment_id", shipment.ID, "actor_org", actorOrgID)
	m.publishEvent(shipment.ID, "segment.accepted", segmentID)

	// Accepting this leg may have opened the next one.
	if next := shipment.SegmentByOrder(seg.Order + 1); next != nil && next.Status == models.SegmentPendingAcceptance {
		if err := m.notifier.SegmentPending(ctx, *next); err != nil {
			m.log.Warn("pending-segment notification failed", "segment_id", next.ID, "error", err)
		}
	}
	return shipment, nil
}

// TakeOver moves an ACCEPTED segment to IN_TRANSIT, recording where the
// custodian picked the goods up.
func (m *Machine) TakeOver(ctx context.Context, segmentID uuid.UUID, actorOrgID uuid.UUID, loc models.GeoPoint) (models.Segment, error) {
	seg, err := m.store.GetSegment(ctx, segmentID)
	if err != nil {
		return models.Segment{}, err
	}
	if seg.OwnerOrgID != actorOrgID {
		return models.Segment{}, fmt.Errorf("%w: segment %s belongs to org %s",
			domainerrors.ErrUnauthorizedTransition, segmentID, seg.OwnerOrgID)
	}
	switch seg.Status {
	case models.SegmentAccepted:
		// proceed
	case models.SegmentInTransit:
		return seg, nil // retry no-op
	case models.SegmentPreparing, models.SegmentPendingAcceptance:
		return models.Segment{}, fmt.Errorf("%w: takeover before accept (segment is %s)",
			domainerrors.ErrOutOfSequence, seg.Status)
	default:
		return models.Segment{}, fmt.Errorf("%w: cannot take over segment in state %s",
			domainerrors.ErrInvalidTransition, seg.Status)
	}

	updated, err := m.store.TakeOverSegment(ctx, segmentID, loc, m.now())
	if err != nil {
		return models.Segment{}, err
	}
	m.recordTransition("takeover")
	m.log.Info("segment taken over", "segment_id", segmentID, "actor_org", actorOrgID,
		"lat", loc.Latitude, "lng", loc.Longitude)
	m.publishEvent(updated.ShipmentID, "segment.taken_over", segmentID)
	return updated, nil
}

// Handover moves an IN_TRANSIT segment to HANDOVER_READY; the next leg's
// Accept completes it. On the final leg the owner is the destination party,
// so its handover is the delivery acknowledgment and the segment goes
// straight to HANDOVER_COMPLETE.
func (m *Machine) Handover(ctx context.Context, segmentID uuid.UUID, actorOrgID uuid.UUID, loc models.GeoPoint) (models.Segment, error) {
	seg, err := m.store.GetSegment(ctx, segmentID)
	if err != nil {
		return models.Segment{}, err
	}
	if seg.OwnerOrgID != actorOrgID {
		return models.Segment{}, fmt.Errorf("%w: segment %s belongs to org %s",
			domainerrors.ErrUnauthorizedTransition, segmentID, seg.OwnerOrgID)
	}
	switch seg.Status {
	case models.SegmentInTransit:
		// proceed
	case models.SegmentHandoverReady, models.SegmentHandoverComplete:
		return seg, nil // retry no-op
	case models.SegmentPreparing, models.SegmentPendingAcceptance, models.SegmentAccepted:
		return models.Segment{}, fmt.Errorf("%w: handover before takeover (segment is %s)",
			domainerrors.ErrOutOfSequence, seg.Status)
	default:
		return models.Segment{}, fmt.Errorf("%w: cannot hand over segment in state %s",
			domainerrors.ErrInvalidTransition, seg.Status)
	}

	shipment, err := m.store.GetShipment(ctx, seg.ShipmentID)
	if err != nil {
		return models.Segment{}, err
	}
	final := shipment.FinalSegment() != nil && shipment.FinalSegment().ID == segmentID

	updated, err := m.store.HandoverSegment(ctx, segmentID, loc, m.now(), final)
	if err != nil {
		return models.Segment{}, err
	}
	m.recordTransition("handover")
	m.log.Info("segment handed over", "segment_id", segmentID, "actor_org", actorOrgID, "final", final)
	m.publishEvent(updated.ShipmentID, "segment.handed_over", segmentID)
	return updated, nil
}

// Reject refuses a segment awaiting acceptance. Propagation halts, the
// shipment derives REJECTED, and every reserved quantity flows back to its
// package.
func (m *Machine) Reject(ctx context.Context, segmentID uuid.UUID, actorOrgID uuid.UUID, reason string) (models.Shipment, error) {
	seg, err := m.store.GetSegment(ctx, segmentID)
	if err != nil {
		return models.Shipment{}, err
	}
	if seg.OwnerOrgID != actorOrgID {
		return models.Shipment{}, fmt.Errorf("%w: segment %s belongs to org %s",
			domainerrors.ErrUnauthorizedTransition, segmentID, seg.OwnerOrgID)
	}
	if seg.Status != models.SegmentPendingAcceptance {
		return models.Shipment{}, fmt.Errorf("%w: cannot reject segment in state %s",
			domainerrors.ErrInvalidTransition, seg.Status)
	}

	shipment, err := m.store.RejectSegment(ctx, segmentID, reason, m.now())
	if err != nil {
		return models.Shipment{}, err
	}
	m.recordTransition("reject")
	m.log.Info("segment rejected", "segment_id", segmentID, "shipment_id", shipment.ID,
		"actor_org", actorOrgID, "reason", reason)
	m.publishEvent(shipment.ID, "segment.rejected", segmentID)
	return shipment, nil
}

// PendingSegment is a segment awaiting the caller's acceptance, tagged with
// resolved area metadata for quick-accept filtering.
type PendingSegment struct {
	Segment models.Segment
	Area    area.Area
}

// ListPending returns segments awaiting the given organization's acceptance.
func (m *Machine) ListPending(ctx context.Context, ownerOrgID uuid.UUID) ([]PendingSegment, error) {
	segments, err := m.store.ListPendingSegments(ctx, ownerOrgID)
	if err != nil {
		return nil, err
	}
	result := make([]PendingSegment, 0, len(segments))
	for _, seg := range segments {
		result = append(result, PendingSegment{Segment: seg, Area: m.resolveArea(ctx, seg)})
	}
	return result, nil
}

// GetSegment exposes segment detail to the transport layer.
func (m *Machine) GetSegment(ctx context.Context, id uuid.UUID) (models.Segment, error) {
	return m.store.GetSegment(ctx, id)
}

func (m *Machine) resolveArea(ctx context.Context, seg models.Segment) area.Area {
	in := area.Input{
		OriginArea:      seg.OriginArea,
		DestinationArea: seg.DestinationArea,
	}
	if cp, err := m.checkpoints.GetCheckpoint(ctx, seg.StartCheckpointID); err == nil {
		in.StartCheckpoint = &area.Geography{Country: cp.Country, State: cp.State}
	}
	if cp, err := m.checkpoints.GetCheckpoint(ctx, seg.EndCheckpointID); err == nil {
		in.EndCheckpoint = &area.Geography{Country: cp.Country, State: cp.State}
	}
	return area.Resolve(in)
}

func (m *Machine) recordTransition(action string) {
	if m.metrics != nil {
		m.metrics.SegmentTransitions.WithLabelValues(action).Inc()
	}
}

// publishEvent notifies downstream trackers, fire-and-forget. Keyed by
// shipment id so a partition preserves per-shipment ordering.
func (m *Machine) publishEvent(shipmentID uuid.UUID, event string, segmentID uuid.UUID) {
	if m.producer == nil {
		return
	}
	payload := map[string]interface{}{
		"event":       event,
		"segment_id":  segmentID.String(),
		"shipment_id": shipmentID.String(),
	}
	go m.producer.Publish(context.Background(), shipmentID.String(), payload)
}
