package trips

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatrace/seatrace_core/internal/models"
)

// fakeStore collects writes in memory
type fakeStore struct {
	vessels map[string]models.Vessel
	trips   []*models.Trip
	details []models.TripDetail
	nextKey int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{vessels: make(map[string]models.Vessel)}
}

func (f *fakeStore) GetOrCreateVessel(_ context.Context, v models.Vessel) (models.Vessel, bool, error) {
	id := v.IMO + "/" + v.ShipID
	if existing, ok := f.vessels[id]; ok {
		return existing, false, nil
	}
	f.nextKey++
	v.Key = f.nextKey
	f.vessels[id] = v
	return v, true, nil
}

func (f *fakeStore) CreateTrip(_ context.Context, t *models.Trip) error {
	f.nextKey++
	t.Key = f.nextKey
	f.trips = append(f.trips, t)
	return nil
}

func (f *fakeStore) UpdateTrip(_ context.Context, t *models.Trip) error {
	return nil
}

func (f *fakeStore) CreateTripDetail(_ context.Context, d *models.TripDetail) error {
	f.nextKey++
	d.Key = f.nextKey
	f.details = append(f.details, *d)
	return nil
}

// sliceSource replays a fixed position list
type sliceSource struct {
	positions []models.RawPosition
}

func (s sliceSource) ForEachOrdered(_ context.Context, fn func(models.RawPosition) error) error {
	for _, p := range s.positions {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func ts(day, hour int) *time.Time {
	t := time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func position(imo, dest string, eta, stamp *time.Time) models.RawPosition {
	return models.RawPosition{
		IMO:         imo,
		MMSI:        "m-" + imo,
		ShipID:      "s-" + imo,
		Destination: dest,
		ETA:         eta,
		Timestamp:   stamp,
	}
}

func TestBuilderSingleFieldChangeKeepsTrip(t *testing.T) {
	// destination changes at the second position, eta at the third, but
	// never both at once: the vessel keeps a single ongoing trip
	eta1, eta2 := ts(10, 0), ts(12, 0)
	source := sliceSource{positions: []models.RawPosition{
		position("9434761", "JEBEL ALI", eta1, ts(1, 8)),
		position("9434761", "SALALAH", eta1, ts(1, 9)),
		position("9434761", "SALALAH", eta2, ts(1, 10)),
	}}

	store := newFakeStore()
	stats, err := NewBuilder(store).Build(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Positions)
	assert.Equal(t, 1, stats.TripsOpened)
	assert.Equal(t, 0, stats.TripsClosed)
	require.Len(t, store.trips, 1)
	assert.Equal(t, models.TripOngoing, store.trips[0].Status)
	assert.Len(t, store.details, 3)
}

func TestBuilderBothFieldsChangeClosesTrip(t *testing.T) {
	eta1, eta2 := ts(10, 0), ts(14, 0)
	source := sliceSource{positions: []models.RawPosition{
		position("9434761", "JEBEL ALI", eta1, ts(1, 8)),
		position("9434761", "JEBEL ALI", eta1, ts(3, 8)),
		position("9434761", "SINGAPORE", eta2, ts(5, 8)),
	}}

	store := newFakeStore()
	stats, err := NewBuilder(store).Build(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TripsOpened)
	assert.Equal(t, 1, stats.TripsClosed)
	require.Len(t, store.trips, 2)

	first := store.trips[0]
	assert.Equal(t, models.TripCompleted, first.Status)
	// the trip closes at the previously seen timestamp, not the one
	// that triggered the change
	require.NotNil(t, first.LastObservedAt)
	assert.Equal(t, *ts(3, 8), *first.LastObservedAt)
	require.NotNil(t, first.ObservedDuration)
	assert.Equal(t, 2, *first.ObservedDuration)

	second := store.trips[1]
	assert.Equal(t, models.TripOngoing, second.Status)
	assert.Equal(t, "SINGAPORE", second.Destination)

	// every position lands in exactly one trip
	assert.Len(t, store.details, 3)
	assert.Equal(t, first.Key, store.details[0].TripKey)
	assert.Equal(t, first.Key, store.details[1].TripKey)
	assert.Equal(t, second.Key, store.details[2].TripKey)
}

func TestBuilderVesselCreatedOnce(t *testing.T) {
	eta := ts(10, 0)
	source := sliceSource{positions: []models.RawPosition{
		position("9434761", "JEBEL ALI", eta, ts(1, 8)),
		position("9434761", "JEBEL ALI", eta, ts(1, 9)),
		position("9434761", "JEBEL ALI", eta, ts(1, 10)),
	}}

	store := newFakeStore()
	stats, err := NewBuilder(store).Build(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.VesselsCreated)
	assert.Len(t, store.vessels, 1)
}

func TestBuilderZeroIMOKeyedByMMSI(t *testing.T) {
	eta := ts(10, 0)
	a := position("0", "JEBEL ALI", eta, ts(1, 8))
	a.MMSI, a.ShipID = "111111111", "s-111"
	b := position("0", "JEBEL ALI", eta, ts(1, 9))
	b.MMSI, b.ShipID = "222222222", "s-222"

	store := newFakeStore()
	stats, err := NewBuilder(store).Build(context.Background(), sliceSource{positions: []models.RawPosition{a, b}})
	require.NoError(t, err)

	// two distinct MMSIs under the zero sentinel are two vessels
	assert.Equal(t, 2, stats.VesselsCreated)
	assert.Equal(t, 2, stats.TripsOpened)
}

func TestBuilderNilTimestampAbortsRun(t *testing.T) {
	eta := ts(10, 0)
	source := sliceSource{positions: []models.RawPosition{
		position("9434761", "JEBEL ALI", eta, ts(1, 8)),
		position("9434761", "JEBEL ALI", eta, nil),
		position("9434761", "JEBEL ALI", eta, ts(1, 10)),
	}}

	store := newFakeStore()
	_, err := NewBuilder(store).Build(context.Background(), source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no timestamp")
}

func TestBuilderNilETAComparisons(t *testing.T) {
	// both destination and eta must differ; nil eta on both sides
	// compares equal, so only the destination changed and the trip holds
	source := sliceSource{positions: []models.RawPosition{
		position("9434761", "JEBEL ALI", nil, ts(1, 8)),
		position("9434761", "SALALAH", nil, ts(1, 9)),
	}}

	store := newFakeStore()
	stats, err := NewBuilder(store).Build(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TripsOpened)
	assert.Equal(t, 0, stats.TripsClosed)
}

func TestBuilderSameDayCloseHasZeroDuration(t *testing.T) {
	eta1, eta2 := ts(10, 0), ts(14, 0)
	source := sliceSource{positions: []models.RawPosition{
		position("9434761", "JEBEL ALI", eta1, ts(1, 8)),
		position("9434761", "SINGAPORE", eta2, ts(1, 11)),
	}}

	store := newFakeStore()
	_, err := NewBuilder(store).Build(context.Background(), source)
	require.NoError(t, err)

	first := store.trips[0]
	require.NotNil(t, first.ObservedDuration)
	assert.Equal(t, 0, *first.ObservedDuration)
	assert.Equal(t, *ts(1, 8), *first.LastObservedAt)
}
