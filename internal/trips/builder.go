package trips

import (
	"context"
	"fmt"
	"time"

	"github.com/seatrace/seatrace_core/internal/ais"
	"github.com/seatrace/seatrace_core/internal/models"
)

// Stats summarizes one build run
type Stats struct {
	Positions      int `json:"positions"`
	VesselsCreated int `json:"vessels_created"`
	TripsOpened    int `json:"trips_opened"`
	TripsClosed    int `json:"trips_closed"`
}

// vesselState tracks the ongoing trip slot for one identity key
type vesselState struct {
	vessel   models.Vessel
	ongoing  *models.Trip
	previous time.Time
}

// Builder reconstructs voyage segments from the ordered raw position
// stream. One instance per run; it is not safe for concurrent use, and
// concurrent runs over overlapping vessels must be serialized by the
// caller (the API layer holds a Redis lock around each run).
type Builder struct {
	store  Store
	states map[string]*vesselState
	stats  Stats
}

// NewBuilder creates a trip builder writing through the given store.
func NewBuilder(store Store) *Builder {
	return &Builder{
		store:  store,
		states: make(map[string]*vesselState),
	}
}

// Build consumes the full position stream and creates/updates vessels,
// trips and trip details. A position without a timestamp aborts the whole
// run: skipping it would desynchronize the per-vessel ordering the trip
// boundaries depend on.
func (b *Builder) Build(ctx context.Context, source PositionSource) (Stats, error) {
	err := source.ForEachOrdered(ctx, func(p models.RawPosition) error {
		return b.process(ctx, p)
	})
	if err != nil {
		return Stats{}, err
	}
	// Final ongoing trips are deliberately left open; the next run's
	// positions decide when they close.
	return b.stats, nil
}

func (b *Builder) process(ctx context.Context, p models.RawPosition) error {
	if p.Timestamp == nil {
		return fmt.Errorf("position id=%d (imo=%s mmsi=%s) has no timestamp", p.ID, p.IMO, p.MMSI)
	}
	timestamp := *p.Timestamp
	key := ais.PositionIdentity(p)
	b.stats.Positions++

	state, seen := b.states[key]
	if !seen {
		vessel, created, err := b.store.GetOrCreateVessel(ctx, models.NewVesselFromPosition(p))
		if err != nil {
			return fmt.Errorf("vessel upsert for %s: %w", key, err)
		}
		if created {
			b.stats.VesselsCreated++
		}

		trip, err := b.openTrip(ctx, vessel.Key, p, timestamp)
		if err != nil {
			return err
		}
		state = &vesselState{vessel: vessel, ongoing: trip}
		b.states[key] = state
	} else if b.tripChanged(state.ongoing, p) {
		if err := b.closeTrip(ctx, state.ongoing, state.previous); err != nil {
			return err
		}
		trip, err := b.openTrip(ctx, state.vessel.Key, p, timestamp)
		if err != nil {
			return err
		}
		state.ongoing = trip
	}

	detail := models.NewTripDetail(state.ongoing.Key, p)
	if err := b.store.CreateTripDetail(ctx, &detail); err != nil {
		return fmt.Errorf("trip detail for %s: %w", key, err)
	}

	state.previous = timestamp
	return nil
}

// tripChanged reports whether the position opens a new voyage segment.
// Both destination AND eta must differ from the ongoing trip's; a change
// in only one field does not split the trip. Deliberate behavior — the
// historical trip counts depend on it.
func (b *Builder) tripChanged(trip *models.Trip, p models.RawPosition) bool {
	return p.Destination != trip.Destination && !timesEqual(p.ETA, trip.ETA)
}

func (b *Builder) openTrip(ctx context.Context, vesselKey int64, p models.RawPosition, firstObserved time.Time) (*models.Trip, error) {
	trip := &models.Trip{
		VesselKey:       vesselKey,
		DSRC:            p.DSRC,
		Destination:     p.Destination,
		ETA:             p.ETA,
		FirstObservedAt: firstObserved,
		Status:          models.TripOngoing,
	}
	if err := b.store.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("open trip for vessel %d: %w", vesselKey, err)
	}
	b.stats.TripsOpened++
	return trip, nil
}

// closeTrip completes the ongoing trip at the previously seen timestamp
// (not the one that triggered the change).
func (b *Builder) closeTrip(ctx context.Context, trip *models.Trip, previous time.Time) error {
	last := previous
	duration := int(last.Sub(trip.FirstObservedAt).Hours() / 24)
	trip.LastObservedAt = &last
	trip.ObservedDuration = &duration
	trip.Status = models.TripCompleted
	if err := b.store.UpdateTrip(ctx, trip); err != nil {
		return fmt.Errorf("close trip %d: %w", trip.Key, err)
	}
	b.stats.TripsClosed++
	return nil
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
