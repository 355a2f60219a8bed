package custody

import "github.com/trackchain/custody-service/internal/models"

// DeriveShipmentStatus computes a shipment's status from its segments.
// This is the single source of truth - shipment status is never stored.
//
// REJECTED: any leg was rejected, propagation halted.
// DELIVERED: the final leg completed its handover.
// IN_TRANSIT: at least one leg has been accepted or moved.
// PREPARING: nothing has left PENDING_ACCEPTANCE yet.
func DeriveShipmentStatus(segments []models.Segment) models.ShipmentStatus {
	var finalOrder int
	for _, seg := range segments {
		if seg.Order > finalOrder {
			finalOrder = seg.Order
		}
	}

	active := false
	for _, seg := range segments {
		switch seg.Status {
		case models.SegmentRejected:
			return models.ShipmentRejected
		case models.SegmentHandoverComplete:
			if seg.Order == finalOrder {
				return models.ShipmentDelivered
			}
			active = true
		case models.SegmentAccepted, models.SegmentInTransit, models.SegmentHandoverReady:
			active = true
		}
	}
	if active {
		return models.ShipmentInTransit
	}
	return models.ShipmentPreparing
}
