package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatrace/seatrace_core/internal/models"
)

var trackedPorts = []string{"KARACHI", "PORT QASIM", "GWADAR"}

func at(day, hour int) *time.Time {
	t := time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestTripCountHistogram(t *testing.T) {
	items := TripCountHistogram([]int{0, 1, 1, 2, 3})

	assert.Equal(t, []HistogramItem{
		{TripCount: 0, ShipCount: 1},
		{TripCount: 1, ShipCount: 2},
		{TripCount: 2, ShipCount: 1},
		{TripCount: 3, ShipCount: 1},
	}, items)
}

func TestTripCountHistogramEmpty(t *testing.T) {
	assert.Empty(t, TripCountHistogram(nil))
}

func TestStayCounts(t *testing.T) {
	positions := []models.RawPosition{
		// three days at KARACHI, anchorage rows folded in
		{ShipID: "a", CurrentPort: "KARACHI", Timestamp: at(1, 8)},
		{ShipID: "a", CurrentPort: "KARACHI ANCH", Timestamp: at(4, 8)},
		// one day
		{ShipID: "b", CurrentPort: "KARACHI", Timestamp: at(1, 8)},
		{ShipID: "b", CurrentPort: "KARACHI", Timestamp: at(2, 10)},
		// same-day visit excluded
		{ShipID: "c", CurrentPort: "KARACHI", Timestamp: at(1, 8)},
		{ShipID: "c", CurrentPort: "KARACHI", Timestamp: at(1, 18)},
		// different port ignored
		{ShipID: "d", CurrentPort: "GWADAR", Timestamp: at(1, 8)},
		{ShipID: "d", CurrentPort: "GWADAR", Timestamp: at(5, 8)},
	}

	counts := StayCounts(positions, "KARACHI")
	assert.Equal(t, map[string]int{
		"3 days": 1,
		"1 day":  1,
	}, counts)
}

func TestShipCounts(t *testing.T) {
	positions := []models.RawPosition{
		{ShipID: "a", CurrentPort: "KARACHI"},
		{ShipID: "a", CurrentPort: "KARACHI"}, // duplicate pair
		{ShipID: "a", CurrentPort: "KARACHI ANCH"},
		{ShipID: "b", CurrentPort: "GWADAR"},
		{ShipID: "c", CurrentPort: ""},
		{ShipID: "d", CurrentPort: "JEBEL ALI"}, // untracked, dropped
	}

	counts := ShipCounts(positions, trackedPorts)
	assert.Equal(t, map[string]int{
		"KARACHI":    2, // berth and anchorage are distinct sightings
		"PORT QASIM": 0,
		"GWADAR":     1,
		"CROSSING":   1,
	}, counts)
}

func TestShipCountsWeekly(t *testing.T) {
	positions := []models.RawPosition{
		{ShipID: "a", CurrentPort: "KARACHI", Timestamp: at(2, 8)},
		{ShipID: "b", CurrentPort: "KARACHI", Timestamp: at(9, 8)},
	}

	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	weeks := ShipCountsWeekly(positions, from, to, trackedPorts)

	require.Len(t, weeks, 2)
	assert.Equal(t, "2024-03-01", weeks[0].WeekStart)
	assert.Equal(t, "2024-03-07", weeks[0].WeekEnd)
	assert.Equal(t, 1, weeks[0].Counts["KARACHI"])
	assert.Equal(t, 1, weeks[1].Counts["KARACHI"])
}

func TestFlagCountsLastSightingWins(t *testing.T) {
	positions := []models.RawPosition{
		{ShipID: "a", Flag: "PA", CurrentPort: "KARACHI"},
		{ShipID: "a", Flag: "LR", CurrentPort: "KARACHI"}, // reflag: last wins
		{ShipID: "b", Flag: "PA", CurrentPort: "KARACHI"},
		{ShipID: "c", Flag: "SG", CurrentPort: "GWADAR"},
	}

	counts := FlagCounts(positions, "KARACHI")
	assert.Equal(t, map[string]int{"LR": 1, "PA": 1}, counts)

	all := FlagCounts(positions, "")
	assert.Equal(t, map[string]int{"LR": 1, "PA": 1, "SG": 1}, all)
}

func TestTypeCountsFirstSightingWins(t *testing.T) {
	positions := []models.RawPosition{
		{ShipID: "a", AISTypeSummary: "Cargo", CurrentPort: "KARACHI"},
		{ShipID: "a", AISTypeSummary: "Tanker", CurrentPort: "KARACHI"},
		{ShipID: "b", AISTypeSummary: "Tanker", CurrentPort: "KARACHI"},
		// exact port match: the anchorage stays separate here
		{ShipID: "c", AISTypeSummary: "Cargo", CurrentPort: "KARACHI ANCH"},
	}

	counts := TypeCounts(positions, "KARACHI")
	assert.Equal(t, map[string]int{"Cargo": 1, "Tanker": 1}, counts)
}

func TestDurationAtSea(t *testing.T) {
	positions := []models.RawPosition{
		// 3 days observed
		{IMO: "1000001", Timestamp: at(1, 8)},
		{IMO: "1000001", Timestamp: at(4, 8)},
		// exactly 20 days
		{IMO: "1000002", Timestamp: at(1, 8)},
		{IMO: "1000002", Timestamp: at(21, 8)},
		// 31 days
		{IMO: "1000003", Timestamp: at(1, 0)},
		{IMO: "1000003", Timestamp: func() *time.Time {
			t := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
			return &t
		}()},
		// zero IMO sentinel: keyed by MMSI, single sighting lands under 15
		{IMO: "0", MMSI: "463113000", Timestamp: at(2, 8)},
	}

	buckets := DurationAtSea(positions)
	assert.Equal(t, DurationBuckets{
		LessThan15:     2,
		Between15And30: 1,
		GreaterThan30:  1,
	}, buckets)
}

func TestHeatmapFeatures(t *testing.T) {
	lat1, lon1 := 24.8123, 66.9789
	lat2, lon2 := 24.3288, 66.5512
	lat3, lon3 := 24.8088, 66.9744 // same 0.1 degree cell as the first

	positions := []models.RawPosition{
		{ID: 1, IMO: "1000001", Latitude: &lat1, Longitude: &lon1},
		{ID: 2, IMO: "1000002", Latitude: &lat2, Longitude: &lon2},
		{ID: 3, IMO: "1000003", Latitude: &lat3, Longitude: &lon3},
		{ID: 4, IMO: "1000004"}, // no coordinates, skipped
	}

	features := HeatmapFeatures(positions)
	require.Len(t, features, 2)

	for _, f := range features {
		assert.Equal(t, "Feature", f.Type)
		assert.Equal(t, "Point", f.Geometry.Type)
	}

	// sorted by latitude then longitude
	assert.InDelta(t, 24.3, features[0].Geometry.Coordinates[1], 1e-9)
	assert.InDelta(t, 66.6, features[0].Geometry.Coordinates[0], 1e-9)
	assert.Equal(t, 1, features[0].Properties.Intensity)
	assert.InDelta(t, 24.8, features[1].Geometry.Coordinates[1], 1e-9)
	assert.InDelta(t, 67.0, features[1].Geometry.Coordinates[0], 1e-9)
	assert.Equal(t, 2, features[1].Properties.Intensity)
}

func TestHeatmapFeaturesLatestPositionWins(t *testing.T) {
	oldLat, oldLon := 24.8, 66.9
	newLat, newLon := 25.3, 67.5

	positions := []models.RawPosition{
		{ID: 1, IMO: "1000001", Latitude: &oldLat, Longitude: &oldLon},
		{ID: 9, IMO: "1000001", Latitude: &newLat, Longitude: &newLon},
	}

	features := HeatmapFeatures(positions)
	require.Len(t, features, 1)
	assert.InDelta(t, 67.5, features[0].Geometry.Coordinates[0], 1e-9)
	assert.InDelta(t, 25.3, features[0].Geometry.Coordinates[1], 1e-9)
}
