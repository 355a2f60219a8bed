package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
)

// MemoryStore is the in-memory implementation of Store, used by tests and
// local development. One RWMutex guards all maps, so every transition and
// the inventory reservation run atomically under the write lock - the same
// guarantees the Postgres store gets from row locks and compare-and-swap.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[uuid.UUID]models.Checkpoint
	categories  map[uuid.UUID]models.ProductCategory
	products    map[uuid.UUID]models.Product
	batches     map[uuid.UUID]models.Batch
	packages    map[uuid.UUID]models.Package
	shipments   map[uuid.UUID]models.Shipment
	segmentIdx  map[uuid.UUID]uuid.UUID // segment id -> shipment id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[uuid.UUID]models.Checkpoint),
		categories:  make(map[uuid.UUID]models.ProductCategory),
		products:    make(map[uuid.UUID]models.Product),
		batches:     make(map[uuid.UUID]models.Batch),
		packages:    make(map[uuid.UUID]models.Package),
		shipments:   make(map[uuid.UUID]models.Shipment),
		segmentIdx:  make(map[uuid.UUID]uuid.UUID),
	}
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// --- Checkpoints ---

func (s *MemoryStore) CreateCheckpoint(ctx context.Context, cp models.Checkpoint) (models.Checkpoint, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Checkpoint{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ID] = cp
	return cp, nil
}

func (s *MemoryStore) GetCheckpoint(ctx context.Context, id uuid.UUID) (models.Checkpoint, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Checkpoint{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return models.Checkpoint{}, fmt.Errorf("%w: checkpoint %s", domainerrors.ErrNotFound, id)
	}
	return cp, nil
}

func (s *MemoryStore) ListCheckpoints(ctx context.Context) ([]models.Checkpoint, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStore) ListCheckpointsByOwner(ctx context.Context, ownerOrgID uuid.UUID) ([]models.Checkpoint, error) {
	all, err := s.ListCheckpoints(ctx)
	if err != nil {
		return nil, err
	}
	var result []models.Checkpoint
	for _, cp := range all {
		if cp.OwnerOrgID == ownerOrgID {
			result = append(result, cp)
		}
	}
	return result, nil
}

// --- Catalog ---

func (s *MemoryStore) CreateCategory(ctx context.Context, c models.ProductCategory) (models.ProductCategory, error) {
	if err := ctxErr(ctx); err != nil {
		return models.ProductCategory{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return c, nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id uuid.UUID) (models.ProductCategory, error) {
	if err := ctxErr(ctx); err != nil {
		return models.ProductCategory{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return models.ProductCategory{}, fmt.Errorf("%w: category %s", domainerrors.ErrNotFound, id)
	}
	return c, nil
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.ProductCategory, 0, len(s.categories))
	for _, c := range s.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id uuid.UUID) (models.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: product %s", domainerrors.ErrNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Product
	for _, p := range s.products {
		if categoryID == nil || p.CategoryID == *categoryID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryStore) CreateBatch(ctx context.Context, b models.Batch) (models.Batch, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Batch{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
	return b, nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, id uuid.UUID) (models.Batch, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Batch{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, fmt.Errorf("%w: batch %s", domainerrors.ErrNotFound, id)
	}
	return b, nil
}

func (s *MemoryStore) ListBatches(ctx context.Context, productID *uuid.UUID) ([]models.Batch, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Batch
	for _, b := range s.batches {
		if productID == nil || b.ProductID == *productID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductionStart.Before(result[j].ProductionStart) })
	return result, nil
}

func (s *MemoryStore) CreatePackage(ctx context.Context, p models.Package) (models.Package, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Package{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetPackage(ctx context.Context, id uuid.UUID) (models.Package, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Package{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	if !ok {
		return models.Package{}, fmt.Errorf("%w: package %s", domainerrors.ErrNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) ListPackages(ctx context.Context, batchID *uuid.UUID) ([]models.Package, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Package
	for _, p := range s.packages {
		if batchID == nil || p.BatchID == *batchID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PackageCode < result[j].PackageCode })
	return result, nil
}

// --- Shipments ---

func (s *MemoryStore) CreateShipment(ctx context.Context, shipment models.Shipment) (models.Shipment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Shipment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check availability under the lock so two concurrent creations
	// cannot both overdraw the same package. Items may reference the same
	// package more than once, so the check is against the aggregate.
	requested := make(map[uuid.UUID]int64)
	for _, item := range shipment.Items {
		requested[item.PackageID] += item.Quantity
	}
	for packageID, quantity := range requested {
		pkg, ok := s.packages[packageID]
		if !ok {
			return models.Shipment{}, fmt.Errorf("%w: package %s", domainerrors.ErrNotFound, packageID)
		}
		if pkg.QuantityAvailable < quantity {
			return models.Shipment{}, fmt.Errorf("%w: package %s has %d available, requested %d",
				domainerrors.ErrInsufficientInventory, pkg.PackageCode, pkg.QuantityAvailable, quantity)
		}
	}

	for packageID, quantity := range requested {
		pkg := s.packages[packageID]
		pkg.QuantityAvailable -= quantity
		if pkg.QuantityAvailable == 0 {
			pkg.Status = models.PackageDepleted
		}
		s.packages[packageID] = pkg
	}

	s.shipments[shipment.ID] = cloneShipment(shipment)
	for _, seg := range shipment.Segments {
		s.segmentIdx[seg.ID] = shipment.ID
	}
	return cloneShipment(shipment), nil
}

func (s *MemoryStore) GetShipment(ctx context.Context, id uuid.UUID) (models.Shipment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Shipment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	shipment, ok := s.shipments[id]
	if !ok {
		return models.Shipment{}, fmt.Errorf("%w: shipment %s", domainerrors.ErrNotFound, id)
	}
	return cloneShipment(shipment), nil
}

func (s *MemoryStore) ListShipments(ctx context.Context, f ShipmentFilter) ([]models.Shipment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Shipment, 0, len(s.shipments))
	for _, sh := range s.shipments {
		if f.ManufacturerOrgID != nil && sh.ManufacturerOrgID != *f.ManufacturerOrgID {
			continue
		}
		all = append(all, sh)
	}
	// Newest first; id breaks created_at ties so the cursor is stable.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})

	start := 0
	if f.Cursor != nil {
		for i, sh := range all {
			if sh.ID == *f.Cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(all) {
		return nil, nil
	}
	end := len(all)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	result := make([]models.Shipment, 0, end-start)
	for _, sh := range all[start:end] {
		result = append(result, cloneShipment(sh))
	}
	return result, nil
}

func (s *MemoryStore) ReplaceShipmentPlan(ctx context.Context, shipmentID uuid.UUID, destinationOrgID uuid.UUID, segments []models.Segment) (models.Shipment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Shipment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	shipment, ok := s.shipments[shipmentID]
	if !ok {
		return models.Shipment{}, fmt.Errorf("%w: shipment %s", domainerrors.ErrNotFound, shipmentID)
	}
	// Re-verify under the lock: no leg may have advanced past acceptance.
	for _, seg := range shipment.Segments {
		if seg.Status != models.SegmentPreparing && seg.Status != models.SegmentPendingAcceptance {
			return models.Shipment{}, fmt.Errorf("%w: segment %d is %s", domainerrors.ErrInvalidState, seg.Order, seg.Status)
		}
	}

	for _, seg := range shipment.Segments {
		delete(s.segmentIdx, seg.ID)
	}
	shipment.DestinationOrgID = destinationOrgID
	shipment.Segments = cloneSegments(segments)
	s.shipments[shipmentID] = shipment
	for _, seg := range shipment.Segments {
		s.segmentIdx[seg.ID] = shipmentID
	}
	return cloneShipment(shipment), nil
}

func (s *MemoryStore) GetSegment(ctx context.Context, id uuid.UUID) (models.Segment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Segment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, _, err := s.findSegment(id)
	if err != nil {
		return models.Segment{}, err
	}
	return cloneSegment(*seg), nil
}

func (s *MemoryStore) ListPendingSegments(ctx context.Context, ownerOrgID uuid.UUID) ([]models.Segment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Segment
	for _, sh := range s.shipments {
		for _, seg := range sh.Segments {
			if seg.Status == models.SegmentPendingAcceptance && seg.OwnerOrgID == ownerOrgID {
				result = append(result, cloneSegment(seg))
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpectedShipDate.Before(result[j].ExpectedShipDate) })
	return result, nil
}

func (s *MemoryStore) AcceptSegment(ctx context.Context, segmentID uuid.UUID, at time.Time) (models.Shipment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Shipment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, shipment, err := s.findSegment(segmentID)
	if err != nil {
		return models.Shipment{}, err
	}
	// The service validated state before calling; a mismatch here means the
	// segment moved between its read and our lock - a lost race.
	if seg.Status != models.SegmentPendingAcceptance {
		return models.Shipment{}, fmt.Errorf("%w: segment %s is %s", domainerrors.ErrConflict, segmentID, seg.Status)
	}

	seg.Status = models.SegmentAccepted
	seg.AcceptedAt = &at

	// Accepting leg N acknowledges leg N-1's handover and opens leg N+1.
	if prev := shipment.SegmentByOrder(seg.Order - 1); prev != nil && prev.Status == models.SegmentHandoverReady {
		prev.Status = models.SegmentHandoverComplete
	}
	if next := shipment.SegmentByOrder(seg.Order + 1); next != nil && next.Status == models.SegmentPreparing {
		next.Status = models.SegmentPendingAcceptance
	}

	s.shipments[shipment.ID] = *shipment
	return cloneShipment(*shipment), nil
}

func (s *MemoryStore) TakeOverSegment(ctx context.Context, segmentID uuid.UUID, loc models.GeoPoint, at time.Time) (models.Segment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Segment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, shipment, err := s.findSegment(segmentID)
	if err != nil {
		return models.Segment{}, err
	}
	if seg.Status != models.SegmentAccepted {
		return models.Segment{}, fmt.Errorf("%w: segment %s is %s", domainerrors.ErrConflict, segmentID, seg.Status)
	}

	seg.Status = models.SegmentInTransit
	seg.TakenOverAt = &at
	seg.TakeoverLocation = &models.GeoPoint{Latitude: loc.Latitude, Longitude: loc.Longitude}

	s.shipments[shipment.ID] = *shipment
	return cloneSegment(*seg), nil
}

func (s *MemoryStore) HandoverSegment(ctx context.Context, segmentID uuid.UUID, loc models.GeoPoint, at time.Time, final bool) (models.Segment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Segment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, shipment, err := s.findSegment(segmentID)
	if err != nil {
		return models.Segment{}, err
	}
	if seg.Status != models.SegmentInTransit {
		return models.Segment{}, fmt.Errorf("%w: segment %s is %s", domainerrors.ErrConflict, segmentID, seg.Status)
	}

	if final {
		seg.Status = models.SegmentHandoverComplete
	} else {
		seg.Status = models.SegmentHandoverReady
	}
	seg.HandedOverAt = &at
	seg.HandoverLocation = &models.GeoPoint{Latitude: loc.Latitude, Longitude: loc.Longitude}

	s.shipments[shipment.ID] = *shipment
	return cloneSegment(*seg), nil
}

func (s *MemoryStore) RejectSegment(ctx context.Context, segmentID uuid.UUID, reason string, at time.Time) (models.Shipment, error) {
	if err := ctxErr(ctx); err != nil {
		return models.Shipment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, shipment, err := s.findSegment(segmentID)
	if err != nil {
		return models.Shipment{}, err
	}
	if seg.Status != models.SegmentPendingAcceptance {
		return models.Shipment{}, fmt.Errorf("%w: segment %s is %s", domainerrors.ErrConflict, segmentID, seg.Status)
	}

	seg.Status = models.SegmentRejected
	seg.RejectReason = reason

	// Release every quantity this shipment reserved back to its packages.
	for _, item := range shipment.Items {
		pkg, ok := s.packages[item.PackageID]
		if !ok {
			continue
		}
		pkg.QuantityAvailable += item.Quantity
		if pkg.QuantityAvailable > pkg.Quantity {
			pkg.QuantityAvailable = pkg.Quantity
		}
		if pkg.QuantityAvailable > 0 {
			pkg.Status = models.PackageAvailable
		}
		s.packages[item.PackageID] = pkg
	}

	s.shipments[shipment.ID] = *shipment
	return cloneShipment(*shipment), nil
}

// findSegment returns pointers into the stored shipment. Callers must hold
// the lock and write the shipment back after mutating.
func (s *MemoryStore) findSegment(id uuid.UUID) (*models.Segment, *models.Shipment, error) {
	shipmentID, ok := s.segmentIdx[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: segment %s", domainerrors.ErrNotFound, id)
	}
	shipment := s.shipments[shipmentID]
	for i := range shipment.Segments {
		if shipment.Segments[i].ID == id {
			return &shipment.Segments[i], &shipment, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: segment %s", domainerrors.ErrNotFound, id)
}

func cloneShipment(s models.Shipment) models.Shipment {
	out := s
	out.Items = append([]models.ShipmentItem(nil), s.Items...)
	out.Segments = cloneSegments(s.Segments)
	return out
}

func cloneSegments(segs []models.Segment) []models.Segment {
	out := make([]models.Segment, len(segs))
	for i, seg := range segs {
		out[i] = cloneSegment(seg)
	}
	return out
}

func cloneSegment(seg models.Segment) models.Segment {
	out := seg
	if seg.AcceptedAt != nil {
		t := *seg.AcceptedAt
		out.AcceptedAt = &t
	}
	if seg.TakenOverAt != nil {
		t := *seg.TakenOverAt
		out.TakenOverAt = &t
	}
	if seg.HandedOverAt != nil {
		t := *seg.HandedOverAt
		out.HandedOverAt = &t
	}
	if seg.TakeoverLocation != nil {
		p := *seg.TakeoverLocation
		out.TakeoverLocation = &p
	}
	if seg.HandoverLocation != nil {
		p := *seg.HandoverLocation
		out.HandoverLocation = &p
	}
	return out
}
