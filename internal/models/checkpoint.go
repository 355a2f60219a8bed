package models

import "github.com/google/uuid"

// Checkpoint is a registered physical location (facility, warehouse, port)
// usable as a segment boundary. Once any segment references a checkpoint it
// is immutable: there is no update or delete, deleting would orphan shipment legs.
type Checkpoint struct {
	ID         uuid.UUID
	Name       string
	Address    string
	Latitude   float64
	Longitude  float64
	Country    string
	State      string
	City       string    // optional
	OwnerOrgID uuid.UUID // organization operating this location
}
