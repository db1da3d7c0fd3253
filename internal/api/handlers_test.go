package api

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatrace/seatrace_core/internal/models"
	"github.com/seatrace/seatrace_core/internal/reconcile"
	"github.com/seatrace/seatrace_core/internal/store"
)

func tripCount(key int64, name string, count int) store.VesselTripCount {
	return store.VesselTripCount{
		Vessel:    models.Vessel{Key: key, ShipName: name},
		TripCount: count,
	}
}

func TestFilterVesselTripCounts(t *testing.T) {
	items := []store.VesselTripCount{
		tripCount(1, "OCEAN PEARL", 5),
		tripCount(2, "SEA HAWK", 0),
		tripCount(3, "OCEAN QUEEN", 2),
		tripCount(4, "BLUE STAR", 9),
		tripCount(5, "NORTH WIND", 9),
	}

	t.Run("sorted by trip count descending, key breaks ties", func(t *testing.T) {
		got := filterVesselTripCounts(items, vesselTripFilters{})
		assert.Equal(t, []vesselTripCountResponse{
			{Key: 4, ShipName: "BLUE STAR", TripCount: 9},
			{Key: 5, ShipName: "NORTH WIND", TripCount: 9},
			{Key: 1, ShipName: "OCEAN PEARL", TripCount: 5},
			{Key: 3, ShipName: "OCEAN QUEEN", TripCount: 2},
			{Key: 2, ShipName: "SEA HAWK", TripCount: 0},
		}, got)
	})

	t.Run("min_trips drops vessels below the bound", func(t *testing.T) {
		got := filterVesselTripCounts(items, vesselTripFilters{MinTrips: 5})
		assert.Equal(t, []vesselTripCountResponse{
			{Key: 4, ShipName: "BLUE STAR", TripCount: 9},
			{Key: 5, ShipName: "NORTH WIND", TripCount: 9},
			{Key: 1, ShipName: "OCEAN PEARL", TripCount: 5},
		}, got)
	})

	t.Run("max_trips drops vessels above the bound", func(t *testing.T) {
		got := filterVesselTripCounts(items, vesselTripFilters{MaxTrips: 5})
		for _, item := range got {
			assert.LessOrEqual(t, item.TripCount, 5)
		}
		assert.Len(t, got, 3)
	})

	t.Run("windowed request excludes zero-trip vessels", func(t *testing.T) {
		got := filterVesselTripCounts(items, vesselTripFilters{Windowed: true})
		for _, item := range got {
			assert.NotZero(t, item.TripCount)
		}
		assert.Len(t, got, 4)
	})

	t.Run("search matches ship name case-insensitively and excludes zeros", func(t *testing.T) {
		got := filterVesselTripCounts(items, vesselTripFilters{Search: "ocean"})
		assert.Equal(t, []vesselTripCountResponse{
			{Key: 1, ShipName: "OCEAN PEARL", TripCount: 5},
			{Key: 3, ShipName: "OCEAN QUEEN", TripCount: 2},
		}, got)

		got = filterVesselTripCounts(items, vesselTripFilters{Search: "sea hawk"})
		assert.Empty(t, got)
	})

	t.Run("no matches yields an empty slice, not nil", func(t *testing.T) {
		got := filterVesselTripCounts(nil, vesselTripFilters{})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestFlattenPortItem(t *testing.T) {
	item := reconcile.PortLeaveEnterItem{
		Date: "01-03-2025",
		Ports: map[string]*reconcile.ArrDep{
			"KARACHI":    {Arrivals: 3, Departures: -1},
			"PORT QASIM": {Arrivals: 0, Departures: 0},
		},
	}

	got := flattenPortItem(item)
	assert.Equal(t, map[string]interface{}{
		"date":       "01-03-2025",
		"KARACHI":    &reconcile.ArrDep{Arrivals: 3, Departures: -1},
		"PORT QASIM": &reconcile.ArrDep{},
	}, got)
}

// newTestApp mounts the handlers whose parameter validation runs before
// any database access, so bad requests can be exercised without a pool.
func newTestApp() *fiber.App {
	app := fiber.New()
	ais := app.Group("/ais")
	ais.Get("/mv_trips", MVTrips)
	ais.Get("/stay_count", StayCount)
	ais.Get("/ship_counts_week", ShipCountsWeek)
	ais.Get("/flag_counts", FlagCountsHandler)
	ais.Get("/type_counts", TypeCountsHandler)
	ais.Get("/mer_duration_at_sea", MerDurationAtSea)
	ais.Get("/mer_leave_enter", MerLeaveEnter)
	ais.Get("/mer_mv_leave_enter", MerMVLeaveEnter)
	ais.Get("/mer_fv_con", MerFVCon)
	return app
}

func TestDateParamsRequired(t *testing.T) {
	app := newTestApp()

	paths := []string{
		"/ais/stay_count",
		"/ais/ship_counts_week",
		"/ais/flag_counts",
		"/ais/type_counts",
		"/ais/mer_duration_at_sea",
		"/ais/mer_leave_enter",
		"/ais/mer_mv_leave_enter",
	}
	for _, path := range paths {
		t.Run(path+" without dates", func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", path, nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
		t.Run(path+" with one date", func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", path+"?date_from=2025-03-01", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestDateParamsValidation(t *testing.T) {
	app := newTestApp()

	t.Run("malformed date is rejected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET",
			"/ais/stay_count?date_from=03/01/2025&date_to=2025-03-10", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET",
			"/ais/flag_counts?date_from=2025-03-10&date_to=2025-03-01", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("optional dates still validate their format", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET",
			"/ais/mv_trips?date_from=yesterday", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest("GET",
			"/ais/mer_fv_con?date_to=2025-13-40", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestMerLeaveEnterRequiresBoatLocation(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET",
		"/ais/mer_leave_enter?date_from=2025-03-01&date_to=2025-03-10", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
