package models

import (
	"time"

	"github.com/google/uuid"
)

// The catalog hierarchy: ProductCategory -> Product -> Batch -> Package.
// Packages are the unit of custody transfer, everything above them is
// descriptive inventory structure.

type ProductCategory struct {
	ID   uuid.UUID
	Name string
}

// Product carries the cold-chain requirements consumers check telemetry
// against. Temperatures are degrees Celsius.
type Product struct {
	ID                   uuid.UUID
	Name                 string
	CategoryID           uuid.UUID
	RequiredStartTemp    float64
	RequiredEndTemp      float64
	HandlingInstructions string
}

type BatchReleaseStatus string

const (
	BatchPending  BatchReleaseStatus = "PENDING"
	BatchReleased BatchReleaseStatus = "RELEASED"
	BatchRecalled BatchReleaseStatus = "RECALLED"
)

type Batch struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	ManufacturerOrgID uuid.UUID
	Facility          string
	ProductionStart   time.Time
	ProductionEnd     time.Time
	QuantityProduced  int64
	ReleaseStatus     BatchReleaseStatus
	ExpiryDate        time.Time
}

type PackageStatus string

const (
	PackageAvailable PackageStatus = "AVAILABLE"
	PackageDepleted  PackageStatus = "DEPLETED"
)

// Package is the smallest unit custody transfers are denominated in.
// Invariant: QuantityAvailable <= Quantity, and open shipment reservations
// never exceed QuantityAvailable (enforced by the store under lock).
type Package struct {
	ID                uuid.UUID
	BatchID           uuid.UUID
	PackageCode       string
	Quantity          int64
	QuantityAvailable int64
	Unit              string
	Status            PackageStatus
}
