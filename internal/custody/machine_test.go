package custody

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/store"
)

// fixture seeds a two-leg shipment: manufacturer -> carrier-owned warehouse
// -> destination pharmacy. Leg 1 is owned by the carrier, leg 2 by the
// destination party.
type fixture struct {
	store      *store.MemoryStore
	machine    *Machine
	shipment   models.Shipment
	carrierOrg uuid.UUID
	destOrg    uuid.UUID
	pkg        models.Package
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()

	carrierOrg := uuid.New()
	destOrg := uuid.New()
	mfgOrg := uuid.New()

	cpFactory, err := ms.CreateCheckpoint(ctx, models.Checkpoint{
		ID: uuid.New(), Name: "Factory Gate", Country: "Germany", State: "Bavaria", OwnerOrgID: mfgOrg,
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	cpHub, err := ms.CreateCheckpoint(ctx, models.Checkpoint{
		ID: uuid.New(), Name: "Carrier Hub", Country: "Germany", State: "Hesse", OwnerOrgID: carrierOrg,
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	cpPharmacy, err := ms.CreateCheckpoint(ctx, models.Checkpoint{
		ID: uuid.New(), Name: "City Pharmacy", Country: "France", State: "Alsace", OwnerOrgID: destOrg,
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	pkg, err := ms.CreatePackage(ctx, models.Package{
		ID: uuid.New(), BatchID: uuid.New(), PackageCode: "PKG-001",
		Quantity: 10, QuantityAvailable: 10, Unit: "vials", Status: models.PackageAvailable,
	})
	if err != nil {
		t.Fatalf("seed package: %v", err)
	}

	shipment := models.Shipment{
		ID:                uuid.New(),
		ManufacturerOrgID: mfgOrg,
		DestinationOrgID:  destOrg,
		Items: []models.ShipmentItem{
			{PackageID: pkg.ID, Quantity: 5},
		},
		CreatedAt: time.Now(),
	}
	shipment.Segments = []models.Segment{
		{
			ID: uuid.New(), ShipmentID: shipment.ID, Order: 1,
			StartCheckpointID: cpFactory.ID, EndCheckpointID: cpHub.ID,
			Status: models.SegmentPendingAcceptance, OwnerOrgID: carrierOrg,
		},
		{
			ID: uuid.New(), ShipmentID: shipment.ID, Order: 2,
			StartCheckpointID: cpHub.ID, EndCheckpointID: cpPharmacy.ID,
			Status: models.SegmentPreparing, OwnerOrgID: destOrg,
		},
	}

	created, err := ms.CreateShipment(ctx, shipment)
	if err != nil {
		t.Fatalf("seed shipment: %v", err)
	}

	return &fixture{
		store:      ms,
		machine:    NewMachine(ms, ms, nil, nil, nil, logger.NewNop()),
		shipment:   created,
		carrierOrg: carrierOrg,
		destOrg:    destOrg,
		pkg:        pkg,
	}
}

func (f *fixture) segment(order int) models.Segment {
	return *f.shipment.SegmentByOrder(order)
}

func TestMachineFullCustodyWalkthrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seg1, seg2 := f.segment(1), f.segment(2)

	// Carrier accepts leg 1. Leg 2 opens for the destination's acceptance.
	shipment, err := f.machine.Accept(ctx, seg1.ID, f.carrierOrg)
	if err != nil {
		t.Fatalf("accept leg 1: %v", err)
	}
	if got := shipment.SegmentByOrder(1).Status; got != models.SegmentAccepted {
		t.Errorf("leg 1 after accept = %s, want ACCEPTED", got)
	}
	if got := shipment.SegmentByOrder(2).Status; got != models.SegmentPendingAcceptance {
		t.Errorf("leg 2 after leg 1 accept = %s, want PENDING_ACCEPTANCE", got)
	}
	if got := DeriveShipmentStatus(shipment.Segments); got != models.ShipmentInTransit {
		t.Errorf("shipment after accept = %s, want IN_TRANSIT", got)
	}

	// Carrier picks the goods up.
	updated, err := f.machine.TakeOver(ctx, seg1.ID, f.carrierOrg, models.GeoPoint{Latitude: 48.1, Longitude: 11.5})
	if err != nil {
		t.Fatalf("takeover leg 1: %v", err)
	}
	if updated.Status != models.SegmentInTransit {
		t.Errorf("leg 1 after takeover = %s, want IN_TRANSIT", updated.Status)
	}
	if updated.TakeoverLocation == nil || updated.TakeoverLocation.Latitude != 48.1 {
		t.Errorf("takeover location not recorded: %+v", updated.TakeoverLocation)
	}

	// Carrier declares handover at the hub. Not the final leg, so the
	// segment parks in HANDOVER_READY until the next custodian accepts.
	updated, err = f.machine.Handover(ctx, seg1.ID, f.carrierOrg, models.GeoPoint{Latitude: 50.1, Longitude: 8.7})
	if err != nil {
		t.Fatalf("handover leg 1: %v", err)
	}
	if updated.Status != models.SegmentHandoverReady {
		t.Errorf("leg 1 after handover = %s, want HANDOVER_READY", updated.Status)
	}

	// Destination accepts leg 2, which acknowledges leg 1's handover.
	shipment, err = f.machine.Accept(ctx, seg2.ID, f.destOrg)
	if err != nil {
		t.Fatalf("accept leg 2: %v", err)
	}
	if got := shipment.SegmentByOrder(1).Status; got != models.SegmentHandoverComplete {
		t.Errorf("leg 1 after leg 2 accept = %s, want HANDOVER_COMPLETE", got)
	}
	if got := shipment.SegmentByOrder(2).Status; got != models.SegmentAccepted {
		t.Errorf("leg 2 after accept = %s, want ACCEPTED", got)
	}
	if got := DeriveShipmentStatus(shipment.Segments); got != models.ShipmentInTransit {
		t.Errorf("shipment mid-route = %s, want IN_TRANSIT", got)
	}

	// Destination moves and completes the final leg: delivery.
	if _, err := f.machine.TakeOver(ctx, seg2.ID, f.destOrg, models.GeoPoint{Latitude: 50.1, Longitude: 8.7}); err != nil {
		t.Fatalf("takeover leg 2: %v", err)
	}
	updated, err = f.machine.Handover(ctx, seg2.ID, f.destOrg, models.GeoPoint{Latitude: 48.6, Longitude: 7.8})
	if err != nil {
		t.Fatalf("handover leg 2: %v", err)
	}
	if updated.Status != models.SegmentHandoverComplete {
		t.Errorf("final leg after handover = %s, want HANDOVER_COMPLETE", updated.Status)
	}

	final, err := f.store.GetShipment(ctx, f.shipment.ID)
	if err != nil {
		t.Fatalf("get shipment: %v", err)
	}
	if got := DeriveShipmentStatus(final.Segments); got != models.ShipmentDelivered {
		t.Errorf("shipment after delivery = %s, want DELIVERED", got)
	}
}

func TestMachineOutOfSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seg1 := f.segment(1)

	// Takeover without accepting first.
	if _, err := f.machine.TakeOver(ctx, seg1.ID, f.carrierOrg, models.GeoPoint{}); !errors.Is(err, domainerrors.ErrOutOfSequence) {
		t.Errorf("takeover before accept: got %v, want ErrOutOfSequence", err)
	}
	// Handover without taking over first.
	if _, err := f.machine.Handover(ctx, seg1.ID, f.carrierOrg, models.GeoPoint{}); !errors.Is(err, domainerrors.ErrOutOfSequence) {
		t.Errorf("handover before accept: got %v, want ErrOutOfSequence", err)
	}

	if _, err := f.machine.Accept(ctx, seg1.ID, f.carrierOrg); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Handover straight after accept, skipping takeover.
	if _, err := f.machine.Handover(ctx, seg1.ID, f.carrierOrg, models.GeoPoint{}); !errors.Is(err, domainerrors.ErrOutOfSequence) {
		t.Errorf("handover before takeover: got %v, want ErrOutOfSequence", err)
	}
}

func TestMachinePreparingSegmentNotActionable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seg2 := f.segment(2)

	// Leg 2 is still PREPARING; its owner cannot act on it yet.
	if _, err := f.machine.Accept(ctx, seg2.ID, f.destOrg); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Errorf("accept PREPARING leg: got %v, want ErrInvalidTransition", err)
	}
	if _, err := f.machine.TakeOver(ctx, seg2.ID, f.destOrg, models.GeoPoint{}); !errors.Is(err, domainerrors.ErrOutOfSequence) {
		t.Errorf("takeover PREPARING leg: got %v, want ErrOutOfSequence", err)
	}
}

func TestMachineUnauthorizedActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seg1 := f.segment(1)
	stranger := uuid.New()

	if _, err := f.machine.Accept(ctx, seg1.ID, stranger); !errors.Is(err, domainerrors.ErrUnauthorizedTransition) {
		t.Errorf("accept by stranger: got %v, want ErrUnauthorizedTransition", err)
	}
	if _, err := f.machine.Reject(ctx, seg1.ID, stranger, "not mine"); !errors.Is(err, domainerrors.ErrUnauthorizedTransition) {
		t.Errorf("reject by stranger: got %v, want ErrUnauthorizedTransition", err)
	}
	// The destination owns leg 2, not leg 1.
	if _, err := f.machine.Accept(ctx, seg1.ID, f.destOrg); !errors.Is(err, domainerrors.ErrUnauthorizedTransition) {
		t.Errorf("accept by wrong owner: got %v, want ErrUnauthorizedTransition", err)
	}
}

func TestMachineAcceptRetryIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seg1 := f.segment(1)

	if _, err := f.machine.Accept(ctx, seg1.ID, f.carrierOrg); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	shipment, err := f.machine.Accept(ctx, seg1.ID, f.carrierOrg)
	if err != nil {
		t.Fatalf("retried accept: %v", err)
	}
	if got := shipment.SegmentByOrder(1).Status; got != models.SegmentAccepted {
		t.Errorf("leg 1 after retried accept = %s, want ACCEPTED", got)
	}
}

func TestMachineRejectReleasesInventory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seg1 := f.segment(1)

	// Creation reserved 5 of 10.
	pkg, err := f.store.GetPackage(ctx, f.pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if pkg.QuantityAvailable != 5 {
		t.Fatalf("reserved quantity = %d, want 5", pkg.QuantityAvailable)
	}

	shipment, err := f.machine.Reject(ctx, seg1.ID, f.carrierOrg, "temperature excursion at pickup")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	rejected := shipment.SegmentByOrder(1)
	if rejected.Status != models.SegmentRejected {
		t.Errorf("leg 1 after reject = %s, want REJECTED", rejected.Status)
	}
	if rejected.RejectReason != "temperature excursion at pickup" {
		t.Errorf("reject reason = %q", rejected.RejectReason)
	}
	if got := DeriveShipmentStatus(shipment.Segments); got != models.ShipmentRejected {
		t.Errorf("shipment after reject = %s, want REJECTED", got)
	}

	// Reserved quantities flow back.
	pkg, err = f.store.GetPackage(ctx, f.pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if pkg.QuantityAvailable != 10 {
		t.Errorf("available after reject = %d, want 10", pkg.QuantityAvailable)
	}

	// A rejected leg is terminal.
	if _, err := f.machine.Reject(ctx, seg1.ID, f.carrierOrg, "again"); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Errorf("second reject: got %v, want ErrInvalidTransition", err)
	}
	if _, err := f.machine.Accept(ctx, seg1.ID, f.carrierOrg); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Errorf("accept after reject: got %v, want ErrInvalidTransition", err)
	}
}

func TestMachineListPendingResolvesArea(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending, err := f.machine.ListPending(ctx, f.carrierOrg)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1", len(pending))
	}
	// Leg 1 ends at the Hesse hub, so the end checkpoint wins resolution.
	if pending[0].Area.Country != "Germany" || pending[0].Area.State != "Hesse" {
		t.Errorf("resolved area = %+v, want Germany/Hesse", pending[0].Area)
	}

	// Nothing pending for the destination until leg 1 is accepted.
	pending, err = f.machine.ListPending(ctx, f.destOrg)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("destination pending count = %d, want 0", len(pending))
	}

	if _, err := f.machine.Accept(ctx, f.segment(1).ID, f.carrierOrg); err != nil {
		t.Fatalf("accept: %v", err)
	}
	pending, err = f.machine.ListPending(ctx, f.destOrg)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("destination pending count after accept = %d, want 1", len(pending))
	}
}
