package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
)

func seedPackage(t *testing.T, s *MemoryStore, quantity int64) models.Package {
	t.Helper()
	pkg, err := s.CreatePackage(context.Background(), models.Package{
		ID: uuid.New(), BatchID: uuid.New(), PackageCode: "PKG-1",
		Quantity: quantity, QuantityAvailable: quantity, Unit: "vials", Status: models.PackageAvailable,
	})
	if err != nil {
		t.Fatalf("seed package: %v", err)
	}
	return pkg
}

func twoLegShipment(pkg models.Package, items []models.ShipmentItem) models.Shipment {
	shipment := models.Shipment{
		ID:                uuid.New(),
		ManufacturerOrgID: uuid.New(),
		DestinationOrgID:  uuid.New(),
		Items:             items,
		CreatedAt:         time.Now(),
	}
	shipment.Segments = []models.Segment{
		{
			ID: uuid.New(), ShipmentID: shipment.ID, Order: 1,
			StartCheckpointID: uuid.New(), EndCheckpointID: uuid.New(),
			Status: models.SegmentPendingAcceptance, OwnerOrgID: uuid.New(),
		},
		{
			ID: uuid.New(), ShipmentID: shipment.ID, Order: 2,
			StartCheckpointID: uuid.New(), EndCheckpointID: uuid.New(),
			Status: models.SegmentPreparing, OwnerOrgID: uuid.New(),
		},
	}
	return shipment
}

// Two items drawing on the same package must be checked as one total, not
// each against the same snapshot.
func TestCreateShipmentDuplicatePackageItems(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	pkg := seedPackage(t, s, 10)

	// 6 + 6 = 12 against 10 available: each item alone fits, the total
	// does not.
	_, err := s.CreateShipment(ctx, twoLegShipment(pkg, []models.ShipmentItem{
		{PackageID: pkg.ID, Quantity: 6},
		{PackageID: pkg.ID, Quantity: 6},
	}))
	if !errors.Is(err, domainerrors.ErrInsufficientInventory) {
		t.Fatalf("duplicate-package overdraw: got %v, want ErrInsufficientInventory", err)
	}

	// A failed creation must not touch the package.
	got, err := s.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if got.QuantityAvailable != 10 {
		t.Errorf("available after failed creation = %d, want 10", got.QuantityAvailable)
	}

	// 6 + 4 = 10 fits exactly and depletes the package.
	if _, err := s.CreateShipment(ctx, twoLegShipment(pkg, []models.ShipmentItem{
		{PackageID: pkg.ID, Quantity: 6},
		{PackageID: pkg.ID, Quantity: 4},
	})); err != nil {
		t.Fatalf("exact-fit creation: %v", err)
	}
	got, err = s.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if got.QuantityAvailable != 0 {
		t.Errorf("available after exact fit = %d, want 0", got.QuantityAvailable)
	}
	if got.Status != models.PackageDepleted {
		t.Errorf("status after exact fit = %s, want DEPLETED", got.Status)
	}
}

// Two concurrent accepts of the same segment: the compare-and-swap lets
// exactly one through, the loser gets the retryable conflict.
func TestAcceptSegmentConcurrentDoubleAccept(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	pkg := seedPackage(t, s, 10)

	created, err := s.CreateShipment(ctx, twoLegShipment(pkg, []models.ShipmentItem{
		{PackageID: pkg.ID, Quantity: 5},
	}))
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	segID := created.Segments[0].ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AcceptSegment(ctx, segID, time.Now())
		}(i)
	}
	wg.Wait()

	var winners, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domainerrors.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 || conflicts != 1 {
		t.Errorf("winners = %d, conflicts = %d, want exactly one of each", winners, conflicts)
	}

	shipment, err := s.GetShipment(ctx, created.ID)
	if err != nil {
		t.Fatalf("get shipment: %v", err)
	}
	seg1 := shipment.SegmentByOrder(1)
	if seg1.Status != models.SegmentAccepted {
		t.Errorf("segment after race = %s, want ACCEPTED", seg1.Status)
	}
	if seg1.AcceptedAt == nil {
		t.Error("accepted_at not recorded")
	}
	if got := shipment.SegmentByOrder(2).Status; got != models.SegmentPendingAcceptance {
		t.Errorf("successor after race = %s, want PENDING_ACCEPTANCE", got)
	}
}

// A transition whose from-state guard fails under the lock reports the lost
// race, not a partial write.
func TestTransitionConflictOnStaleState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	pkg := seedPackage(t, s, 10)

	created, err := s.CreateShipment(ctx, twoLegShipment(pkg, []models.ShipmentItem{
		{PackageID: pkg.ID, Quantity: 5},
	}))
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	segID := created.Segments[0].ID

	// Still PENDING_ACCEPTANCE, so the ACCEPTED->IN_TRANSIT swap must fail.
	if _, err := s.TakeOverSegment(ctx, segID, models.GeoPoint{}, time.Now()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Errorf("takeover from stale state: got %v, want ErrConflict", err)
	}

	seg, err := s.GetSegment(ctx, segID)
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if seg.Status != models.SegmentPendingAcceptance {
		t.Errorf("segment after failed swap = %s, want PENDING_ACCEPTANCE", seg.Status)
	}
	if seg.TakenOverAt != nil || seg.TakeoverLocation != nil {
		t.Error("failed swap left a partial write")
	}
}
