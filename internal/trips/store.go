package trips

import (
	"context"

	"github.com/seatrace/seatrace_core/internal/models"
)

// Store is the persistence boundary of the trip builder. The production
// implementation (internal/store) runs every call inside one transaction so
// a failed build leaves no partial vessels, trips or details behind; tests
// inject an in-memory fake.
type Store interface {
	// GetOrCreateVessel returns the vessel registered for (IMO, ShipID),
	// creating it if absent. An existing vessel is never modified.
	GetOrCreateVessel(ctx context.Context, v models.Vessel) (models.Vessel, bool, error)

	// CreateTrip inserts a new trip and fills in its Key.
	CreateTrip(ctx context.Context, t *models.Trip) error

	// UpdateTrip persists the closing fields of a trip.
	UpdateTrip(ctx context.Context, t *models.Trip) error

	// CreateTripDetail inserts one position snapshot.
	CreateTripDetail(ctx context.Context, d *models.TripDetail) error
}

// PositionSource streams raw positions ordered by (identity key, timestamp)
// ascending. The builder relies on that ordering; sources must use
// server-side sorting rather than loading the table into memory.
type PositionSource interface {
	ForEachOrdered(ctx context.Context, fn func(models.RawPosition) error) error
}
