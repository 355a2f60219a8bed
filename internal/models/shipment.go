package models

import (
	"time"

	"github.com/google/uuid"
)

type SegmentStatus string

const (
	SegmentPreparing         SegmentStatus = "PREPARING"
	SegmentPendingAcceptance SegmentStatus = "PENDING_ACCEPTANCE"
	SegmentAccepted          SegmentStatus = "ACCEPTED"
	SegmentInTransit         SegmentStatus = "IN_TRANSIT"
	SegmentHandoverReady     SegmentStatus = "HANDOVER_READY"
	SegmentHandoverComplete  SegmentStatus = "HANDOVER_COMPLETE"
	SegmentRejected          SegmentStatus = "REJECTED"
)

type ShipmentStatus string

const (
	ShipmentPreparing ShipmentStatus = "PREPARING"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
	ShipmentRejected  ShipmentStatus = "REJECTED"
)

// GeoPoint is a location observation recorded at takeover/handover time.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// ShipmentItem reserves a quantity out of a package for the shipment.
// Quantity is a positive integer not exceeding the package's available
// quantity at creation time.
type ShipmentItem struct {
	ProductCategoryID uuid.UUID
	ProductID         uuid.UUID
	BatchID           uuid.UUID
	PackageID         uuid.UUID
	Quantity          int64
}

// Segment is one checkpoint-to-checkpoint leg of a shipment's route with its
// own custody state. Order is 1..N, unique and strictly increasing per
// shipment. A segment's end checkpoint need not equal the next segment's
// start checkpoint (transfer may happen at an unmodeled hub).
type Segment struct {
	ID                   uuid.UUID
	ShipmentID           uuid.UUID
	Order                int
	StartCheckpointID    uuid.UUID
	EndCheckpointID      uuid.UUID
	ExpectedShipDate     time.Time
	EstimatedArrivalDate time.Time
	TimeToleranceHours   int // descriptive SLA field, not an enforced deadline
	RequiredAction       string
	Status               SegmentStatus
	OwnerOrgID           uuid.UUID // the org expected to accept/move this leg
	OriginArea           string    // free-text fallback for area resolution
	DestinationArea      string
	RejectReason         string
	AcceptedAt           *time.Time
	TakenOverAt          *time.Time
	HandedOverAt         *time.Time
	TakeoverLocation     *GeoPoint
	HandoverLocation     *GeoPoint
}

// Shipment groups reserved items and an ordered route of segments.
// Its status is always derived from the segments (custody.DeriveShipmentStatus),
// never stored independently.
type Shipment struct {
	ID                uuid.UUID
	ManufacturerOrgID uuid.UUID
	DestinationOrgID  uuid.UUID
	Items             []ShipmentItem
	Segments          []Segment
	CreatedAt         time.Time
}

// FinalSegment returns the highest-order segment, or nil for an empty route.
func (s *Shipment) FinalSegment() *Segment {
	var final *Segment
	for i := range s.Segments {
		if final == nil || s.Segments[i].Order > final.Order {
			final = &s.Segments[i]
		}
	}
	return final
}

// SegmentByOrder returns the segment with the given order, or nil.
func (s *Shipment) SegmentByOrder(order int) *Segment {
	for i := range s.Segments {
		if s.Segments[i].Order == order {
			return &s.Segments[i]
		}
	}
	return nil
}
