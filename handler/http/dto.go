package httpapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trackchain/custody-service/internal/custody"
	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/internal/planner"
)

// Request and response DTOs. Everything is parsed and validated at this
// boundary so malformed payloads are rejected before they reach a service.

// --- parsing helpers ---

func parseUUID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domainerrors.ErrValidation, field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid uuid", domainerrors.ErrValidation, field)
	}
	return id, nil
}

// parseDate accepts RFC3339 timestamps and bare dates.
func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s is not a valid date", domainerrors.ErrValidation, field)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// --- checkpoints ---

type createCheckpointRequest struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	State     string  `json:"state"`
	City      string  `json:"city"`
}

type checkpointResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Country    string  `json:"country"`
	State      string  `json:"state"`
	City       string  `json:"city"`
	OwnerOrgID string  `json:"owner_org_id"`
}

func toCheckpointResponse(cp models.Checkpoint) checkpointResponse {
	return checkpointResponse{
		ID:         cp.ID.String(),
		Name:       cp.Name,
		Address:    cp.Address,
		Latitude:   cp.Latitude,
		Longitude:  cp.Longitude,
		Country:    cp.Country,
		State:      cp.State,
		City:       cp.City,
		OwnerOrgID: cp.OwnerOrgID.String(),
	}
}

// --- catalog ---

type createCategoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createProductRequest struct {
	Name                 string  `json:"name"`
	CategoryID           string  `json:"product_category_id"`
	RequiredStartTemp    float64 `json:"required_start_temp"`
	RequiredEndTemp      float64 `json:"required_end_temp"`
	HandlingInstructions string  `json:"handling_instructions"`
}

type productResponse struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	CategoryID           string  `json:"product_category_id"`
	RequiredStartTemp    float64 `json:"required_start_temp"`
	RequiredEndTemp      float64 `json:"required_end_temp"`
	HandlingInstructions string  `json:"handling_instructions"`
}

func toProductResponse(p models.Product) productResponse {
	return productResponse{
		ID:                   p.ID.String(),
		Name:                 p.Name,
		CategoryID:           p.CategoryID.String(),
		RequiredStartTemp:    p.RequiredStartTemp,
		RequiredEndTemp:      p.RequiredEndTemp,
		HandlingInstructions: p.HandlingInstructions,
	}
}

type createBatchRequest struct {
	ProductID        string `json:"product_uuid"`
	Facility         string `json:"facility"`
	ProductionStart  string `json:"production_start"`
	ProductionEnd    string `json:"production_end"`
	QuantityProduced int64  `json:"quantity_produced"`
	ExpiryDate       string `json:"expiry_date"`
}

type batchResponse struct {
	ID                string `json:"id"`
	ProductID         string `json:"product_uuid"`
	ManufacturerOrgID string `json:"manufacturer_org_id"`
	Facility          string `json:"facility"`
	ProductionStart   string `json:"production_start"`
	ProductionEnd     string `json:"production_end"`
	QuantityProduced  int64  `json:"quantity_produced"`
	ReleaseStatus     string `json:"release_status"`
	ExpiryDate        string `json:"expiry_date"`
}

func toBatchResponse(b models.Batch) batchResponse {
	return batchResponse{
		ID:                b.ID.String(),
		ProductID:         b.ProductID.String(),
		ManufacturerOrgID: b.ManufacturerOrgID.String(),
		Facility:          b.Facility,
		ProductionStart:   formatTime(b.ProductionStart),
		ProductionEnd:     formatTime(b.ProductionEnd),
		QuantityProduced:  b.QuantityProduced,
		ReleaseStatus:     string(b.ReleaseStatus),
		ExpiryDate:        formatTime(b.ExpiryDate),
	}
}

type createPackageRequest struct {
	BatchID     string `json:"batch_id"`
	PackageCode string `json:"package_code"`
	Quantity    int64  `json:"quantity"`
	Unit        string `json:"unit"`
}

type packageResponse struct {
	ID                string `json:"id"`
	BatchID           string `json:"batch_id"`
	PackageCode       string `json:"package_code"`
	Quantity          int64  `json:"quantity"`
	QuantityAvailable int64  `json:"quantity_available"`
	Unit              string `json:"unit"`
	Status            string `json:"status"`
}

func toPackageResponse(p models.Package) packageResponse {
	return packageResponse{
		ID:                p.ID.String(),
		BatchID:           p.BatchID.String(),
		PackageCode:       p.PackageCode,
		Quantity:          p.Quantity,
		QuantityAvailable: p.QuantityAvailable,
		Unit:              p.Unit,
		Status:            string(p.Status),
	}
}

// --- shipments ---

type shipmentItemRequest struct {
	ProductCategoryID string `json:"product_category_id"`
	ProductID         string `json:"product_uuid"`
	BatchID           string `json:"batch_id"`
	PackageID         string `json:"package_id"`
	Quantity          int64  `json:"quantity"`
}

type segmentRequest struct {
	Order                int    `json:"order"`
	StartCheckpointID    string `json:"start_checkpoint_id"`
	EndCheckpointID      string `json:"end_checkpoint_id"`
	ExpectedShipDate     string `json:"expected_ship_date"`
	EstimatedArrivalDate string `json:"estimated_arrival_date"`
	TimeTolerance        int    `json:"time_tolerance"`
	RequiredAction       string `json:"required_action"`
	OriginArea           string `json:"origin_area"`
	DestinationArea      string `json:"destination_area"`
}

type createShipmentRequest struct {
	ManufacturerUUID     string                `json:"manufacturerUUID"`
	DestinationPartyUUID string                `json:"destinationPartyUUID"`
	ShipmentItems        []shipmentItemRequest `json:"shipmentItems"`
	Checkpoints          []segmentRequest      `json:"checkpoints"`
}

type updateShipmentRequest struct {
	DestinationPartyUUID string           `json:"destinationPartyUUID"`
	Checkpoints          []segmentRequest `json:"checkpoints"`
}

func (r createShipmentRequest) toInput() (planner.CreateShipmentInput, error) {
	manufacturer, err := parseUUID("manufacturerUUID", r.ManufacturerUUID)
	if err != nil {
		return planner.CreateShipmentInput{}, err
	}
	destination, err := parseUUID("destinationPartyUUID", r.DestinationPartyUUID)
	if err != nil {
		return planner.CreateShipmentInput{}, err
	}
	items, err := toItemModels(r.ShipmentItems)
	if err != nil {
		return planner.CreateShipmentInput{}, err
	}
	segments, err := toSegmentInputs(r.Checkpoints)
	if err != nil {
		return planner.CreateShipmentInput{}, err
	}
	return planner.CreateShipmentInput{
		ManufacturerOrgID: manufacturer,
		DestinationOrgID:  destination,
		Items:             items,
		Segments:          segments,
	}, nil
}

func (r updateShipmentRequest) toInput() (planner.UpdatePlanInput, error) {
	destination, err := parseUUID("destinationPartyUUID", r.DestinationPartyUUID)
	if err != nil {
		return planner.UpdatePlanInput{}, err
	}
	segments, err := toSegmentInputs(r.Checkpoints)
	if err != nil {
		return planner.UpdatePlanInput{}, err
	}
	return planner.UpdatePlanInput{
		DestinationOrgID: destination,
		Segments:         segments,
	}, nil
}

func toItemModels(items []shipmentItemRequest) ([]models.ShipmentItem, error) {
	out := make([]models.ShipmentItem, 0, len(items))
	for i, item := range items {
		categoryID, err := parseUUID(fmt.Sprintf("shipmentItems[%d].product_category_id", i), item.ProductCategoryID)
		if err != nil {
			return nil, err
		}
		productID, err := parseUUID(fmt.Sprintf("shipmentItems[%d].product_uuid", i), item.ProductID)
		if err != nil {
			return nil, err
		}
		batchID, err := parseUUID(fmt.Sprintf("shipmentItems[%d].batch_id", i), item.BatchID)
		if err != nil {
			return nil, err
		}
		packageID, err := parseUUID(fmt.Sprintf("shipmentItems[%d].package_id", i), item.PackageID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ShipmentItem{
			ProductCategoryID: categoryID,
			ProductID:         productID,
			BatchID:           batchID,
			PackageID:         packageID,
			Quantity:          item.Quantity,
		})
	}
	return out, nil
}

func toSegmentInputs(segs []segmentRequest) ([]planner.SegmentInput, error) {
	out := make([]planner.SegmentInput, 0, len(segs))
	for i, seg := range segs {
		startID, err := parseUUID(fmt.Sprintf("checkpoints[%d].start_checkpoint_id", i), seg.StartCheckpointID)
		if err != nil {
			return nil, err
		}
		endID, err := parseUUID(fmt.Sprintf("checkpoints[%d].end_checkpoint_id", i), seg.EndCheckpointID)
		if err != nil {
			return nil, err
		}
		shipDate, err := parseDate(fmt.Sprintf("checkpoints[%d].expected_ship_date", i), seg.ExpectedShipDate)
		if err != nil {
			return nil, err
		}
		arrival, err := parseDate(fmt.Sprintf("checkpoints[%d].estimated_arrival_date", i), seg.EstimatedArrivalDate)
		if err != nil {
			return nil, err
		}
		// Order defaults to array position for clients that send the legs
		// in route order without numbering them.
		order := seg.Order
		if order == 0 {
			order = i + 1
		}
		out = append(out, planner.SegmentInput{
			Order:                order,
			StartCheckpointID:    startID,
			EndCheckpointID:      endID,
			ExpectedShipDate:     shipDate,
			EstimatedArrivalDate: arrival,
			TimeToleranceHours:   seg.TimeTolerance,
			RequiredAction:       seg.RequiredAction,
			OriginArea:           seg.OriginArea,
			DestinationArea:      seg.DestinationArea,
		})
	}
	return out, nil
}

type geoPointRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type geoPointResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type shipmentItemResponse struct {
	ProductCategoryID string `json:"product_category_id"`
	ProductID         string `json:"product_uuid"`
	BatchID           string `json:"batch_id"`
	PackageID         string `json:"package_id"`
	Quantity          int64  `json:"quantity"`
}

type segmentResponse struct {
	ID                   string            `json:"id"`
	ShipmentID           string            `json:"shipment_id"`
	Order                int               `json:"order"`
	StartCheckpointID    string            `json:"start_checkpoint_id"`
	EndCheckpointID      string            `json:"end_checkpoint_id"`
	ExpectedShipDate     string            `json:"expected_ship_date"`
	EstimatedArrivalDate string            `json:"estimated_arrival_date"`
	TimeTolerance        int               `json:"time_tolerance"`
	RequiredAction       string            `json:"required_action"`
	Status               string            `json:"status"`
	OwnerOrgID           string            `json:"owner_org_id"`
	OriginArea           string            `json:"origin_area,omitempty"`
	DestinationArea      string            `json:"destination_area,omitempty"`
	RejectReason         string            `json:"reject_reason,omitempty"`
	AcceptedAt           *string           `json:"accepted_at,omitempty"`
	TakenOverAt          *string           `json:"taken_over_at,omitempty"`
	HandedOverAt         *string           `json:"handed_over_at,omitempty"`
	TakeoverLocation     *geoPointResponse `json:"takeover_location,omitempty"`
	HandoverLocation     *geoPointResponse `json:"handover_location,omitempty"`
}

func toSegmentResponse(seg models.Segment) segmentResponse {
	out := segmentResponse{
		ID:                   seg.ID.String(),
		ShipmentID:           seg.ShipmentID.String(),
		Order:                seg.Order,
		StartCheckpointID:    seg.StartCheckpointID.String(),
		EndCheckpointID:      seg.EndCheckpointID.String(),
		ExpectedShipDate:     formatTime(seg.ExpectedShipDate),
		EstimatedArrivalDate: formatTime(seg.EstimatedArrivalDate),
		TimeTolerance:        seg.TimeToleranceHours,
		RequiredAction:       seg.RequiredAction,
		Status:               string(seg.Status),
		OwnerOrgID:           seg.OwnerOrgID.String(),
		OriginArea:           seg.OriginArea,
		DestinationArea:      seg.DestinationArea,
		RejectReason:         seg.RejectReason,
		AcceptedAt:           formatTimePtr(seg.AcceptedAt),
		TakenOverAt:          formatTimePtr(seg.TakenOverAt),
		HandedOverAt:         formatTimePtr(seg.HandedOverAt),
	}
	if seg.TakeoverLocation != nil {
		out.TakeoverLocation = &geoPointResponse{Latitude: seg.TakeoverLocation.Latitude, Longitude: seg.TakeoverLocation.Longitude}
	}
	if seg.HandoverLocation != nil {
		out.HandoverLocation = &geoPointResponse{Latitude: seg.HandoverLocation.Latitude, Longitude: seg.HandoverLocation.Longitude}
	}
	return out
}

type shipmentResponse struct {
	ID                   string                 `json:"id"`
	ManufacturerUUID     string                 `json:"manufacturerUUID"`
	DestinationPartyUUID string                 `json:"destinationPartyUUID"`
	Status               string                 `json:"status"`
	ShipmentItems        []shipmentItemResponse `json:"shipmentItems"`
	Segments             []segmentResponse      `json:"segments"`
	CreatedAt            string                 `json:"created_at"`
}

func toShipmentResponse(s models.Shipment) shipmentResponse {
	items := make([]shipmentItemResponse, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, shipmentItemResponse{
			ProductCategoryID: item.ProductCategoryID.String(),
			ProductID:         item.ProductID.String(),
			BatchID:           item.BatchID.String(),
			PackageID:         item.PackageID.String(),
			Quantity:          item.Quantity,
		})
	}
	segments := make([]segmentResponse, 0, len(s.Segments))
	for _, seg := range s.Segments {
		segments = append(segments, toSegmentResponse(seg))
	}
	return shipmentResponse{
		ID:                   s.ID.String(),
		ManufacturerUUID:     s.ManufacturerOrgID.String(),
		DestinationPartyUUID: s.DestinationOrgID.String(),
		Status:               string(custody.DeriveShipmentStatus(s.Segments)),
		ShipmentItems:        items,
		Segments:             segments,
		CreatedAt:            formatTime(s.CreatedAt),
	}
}

type shipmentListResponse struct {
	Shipments  []shipmentResponse `json:"shipments"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type pendingSegmentResponse struct {
	segmentResponse
	AreaCountry string `json:"area_country"`
	AreaState   string `json:"area_state"`
}
