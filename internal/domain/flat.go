package domain

import (
	"context"
	"time"
)

// Occupancy is the state of a flat
type Occupancy string

const (
	OccupancyVacant        Occupancy = "Vacant"
	OccupancyOwnerOccupied Occupancy = "Owner-Occupied"
	OccupancyRented        Occupancy = "Rented"
)

// Valid reports whether o is one of the known occupancy values.
func (o Occupancy) Valid() bool {
	switch o {
	case OccupancyVacant, OccupancyOwnerOccupied, OccupancyRented:
		return true
	}
	return false
}

// Flat is a unit within a society
type Flat struct {
	ID          int64     `json:"id"`
	SocietyCode string    `json:"society_code"`
	FlatID      string    `json:"flat_id"` // e.g. A0101
	Occupancy   Occupancy `json:"occupancy"`
	OwnerID     *int64    `json:"owner_id"`
	ResidentID  *int64    `json:"resident_id"` // only set while Occupancy is Rented
	CreatedAt   time.Time `json:"created_at"`
}

// FlatDetails is a flat joined with its linked owner and tenant
type FlatDetails struct {
	Flat
	Owner    *Resident `json:"owner"`
	Resident *Resident `json:"resident"`
}

// FlatRepository defines data access for flats
type FlatRepository interface {
	Create(ctx context.Context, flat *Flat) error
	// CreateGrid inserts every flat code for the society in one statement.
	CreateGrid(ctx context.Context, societyCode string, flatIDs []string) (int, error)
	// GetByID loads a flat. Inside a transaction the row is locked for update.
	GetByID(ctx context.Context, id int64) (*Flat, error)
	Update(ctx context.Context, flat *Flat) error
	ListWithOccupants(ctx context.Context, societyCode string) ([]*FlatDetails, error)
}

// FlatListCache caches listFlatsWithDetails results per society. Every
// Invalidate starts a new generation of the society's entry. Get reports the
// generation it saw, hit or miss, and Set drops a listing whose generation is
// no longer current, so a load that raced a write is never cached.
type FlatListCache interface {
	Get(ctx context.Context, societyCode string) (flats []*FlatDetails, generation uint64, ok bool)
	Set(ctx context.Context, societyCode string, generation uint64, flats []*FlatDetails)
	Invalidate(ctx context.Context, societyCode string)
}
