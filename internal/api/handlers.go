package api

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/seatrace/seatrace_core/internal/ais"
	"github.com/seatrace/seatrace_core/internal/analytics"
	"github.com/seatrace/seatrace_core/internal/cache"
	"github.com/seatrace/seatrace_core/internal/db"
	"github.com/seatrace/seatrace_core/internal/events"
	"github.com/seatrace/seatrace_core/internal/metrics"
	"github.com/seatrace/seatrace_core/internal/models"
	"github.com/seatrace/seatrace_core/internal/store"
	"github.com/seatrace/seatrace_core/internal/trips"
)

var (
	collector *metrics.Collector
	publisher *events.Publisher
)

// Configure wires the optional metrics collector and event publisher into
// the handler package. Either may be nil.
func Configure(c *metrics.Collector, p *events.Publisher) {
	collector = c
	publisher = p
}

const dateLayout = "2006-01-02"

// requireDateRange reads the mandatory date_from/date_to query parameters.
// A missing or malformed date is a client error, never silently defaulted.
func requireDateRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	fromRaw := c.Query("date_from")
	toRaw := c.Query("date_to")
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("date_from and date_to are required (YYYY-MM-DD)")
	}

	from, err := time.Parse(dateLayout, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date_from %q: expected YYYY-MM-DD", fromRaw)
	}
	parsed, err := time.Parse(dateLayout, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date_to %q: expected YYYY-MM-DD", toRaw)
	}
	to := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, time.UTC)

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date_to precedes date_from")
	}
	return from, to, nil
}

// parseDateRange reads date_from/date_to, falling back to the last
// defaultDays days ending today when absent. Only endpoints with a
// documented fallback window use this; everything else requires the dates.
func parseDateRange(c *fiber.Ctx, defaultDays int) (time.Time, time.Time, error) {
	if c.Query("date_from") != "" && c.Query("date_to") != "" {
		return requireDateRange(c)
	}
	now := time.Now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	return to.AddDate(0, 0, -defaultDays), to, nil
}

// parseOptionalDates reads date_from/date_to as open-ended bounds; either
// may be absent.
func parseOptionalDates(c *fiber.Ctx) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if s := c.Query("date_from"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_from %q: expected YYYY-MM-DD", s)
		}
		from = &parsed
	}
	if s := c.Query("date_to"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_to %q: expected YYYY-MM-DD", s)
		}
		end := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, time.UTC)
		to = &end
	}
	return from, to, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func internalError(c *fiber.Ctx, err error) error {
	log.Printf("internal error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

// respondCached serves a payload from Redis when a previous request
// already computed it, recomputing and caching otherwise. Cache failures
// degrade to computing every time.
func respondCached(c *fiber.Ctx, endpoint string, params []string, compute func() (interface{}, error)) error {
	ctx := c.Context()
	key := cache.QueryKey(endpoint, params...)

	var raw json.RawMessage
	if hit, err := cache.GetJSON(ctx, key, &raw); err == nil && hit {
		if collector != nil {
			collector.CacheHits.Inc()
		}
		c.Set("X-Cache", "hit")
		return c.JSON(raw)
	}
	if collector != nil {
		collector.CacheMisses.Inc()
	}

	start := time.Now()
	payload, err := compute()
	if err != nil {
		return internalError(c, err)
	}
	if collector != nil {
		collector.ObserveQuery(endpoint, time.Since(start))
	}

	if err := cache.SetJSON(ctx, key, payload, cache.LoadConfigFromEnv().TTL); err != nil {
		log.Printf("failed to cache %s payload: %v", endpoint, err)
	}
	return c.JSON(payload)
}

// Health handles the /health endpoint
func Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbErr := db.HealthCheck(ctx)
	dbStatus := "ok"
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisErr := cache.HealthCheck(ctx)
	redisStatus := "ok"
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := fiber.StatusOK
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// buildLockKey serializes everything that writes vessels and trips.
// register_trip and populate_data share it so they never interleave.
var buildLockKey = cache.BuildLockKey("trips")

// RegisterTrip handles POST /ais/register_trip: one full pass over the raw
// position stream, segmenting it into vessels, trips and trip details.
// Concurrent callers get 409; the whole run commits or rolls back as one
// transaction.
func RegisterTrip(c *fiber.Ctx) error {
	ctx := c.Context()

	acquired, err := cache.AcquireLock(ctx, buildLockKey, cache.LoadConfigFromEnv().LockTTL)
	if err != nil {
		return internalError(c, err)
	}
	if !acquired {
		if collector != nil {
			collector.BuildsRejected.Inc()
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a trip build is already running",
		})
	}
	defer func() {
		if err := cache.ReleaseLock(c.Context(), buildLockKey); err != nil {
			log.Printf("failed to release build lock: %v", err)
		}
	}()

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	positions := store.NewPositionStore(pool)
	tripStore := store.NewTripStore(pool)

	if collector != nil {
		collector.BuildsStarted.Inc()
	}
	start := time.Now()

	var stats trips.Stats
	err = tripStore.RunBuild(ctx, func(s trips.Store) error {
		var buildErr error
		stats, buildErr = trips.NewBuilder(s).Build(ctx, positions)
		return buildErr
	})
	elapsed := time.Since(start)

	if publisher != nil {
		event := events.BuildCompleted{
			FinishedAt: time.Now().UTC(),
			Duration:   elapsed.Seconds(),
			Stats:      stats,
		}
		if err != nil {
			event.Error = err.Error()
		}
		if pubErr := publisher.PublishBuildCompleted(event); pubErr != nil {
			log.Printf("failed to publish build event: %v", pubErr)
		}
	}

	if err != nil {
		if collector != nil {
			collector.BuildsFailed.Inc()
		}
		log.Printf("trip build failed after %s: %v", elapsed, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "trip build failed, no changes were applied",
		})
	}

	if collector != nil {
		collector.BuildsFinished.Inc()
		collector.BuildDuration.Observe(elapsed.Seconds())
		collector.PositionsProcessed.Add(float64(stats.Positions))
		collector.VesselsCreated.Add(float64(stats.VesselsCreated))
		collector.TripsOpened.Add(float64(stats.TripsOpened))
		collector.TripsClosed.Add(float64(stats.TripsClosed))
	}

	log.Printf("trip build completed in %s: %d positions, %d vessels created, %d trips opened, %d closed",
		elapsed, stats.Positions, stats.VesselsCreated, stats.TripsOpened, stats.TripsClosed)

	return c.JSON(fiber.Map{
		"message": "trips registered successfully",
		"stats":   stats,
	})
}

// PopulateData handles POST /ais/populate_data: registers vessels from the
// raw stream without touching trips. Shares the build lock with
// RegisterTrip.
func PopulateData(c *fiber.Ctx) error {
	ctx := c.Context()

	acquired, err := cache.AcquireLock(ctx, buildLockKey, cache.LoadConfigFromEnv().LockTTL)
	if err != nil {
		return internalError(c, err)
	}
	if !acquired {
		if collector != nil {
			collector.BuildsRejected.Inc()
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a build is already running",
		})
	}
	defer func() {
		if err := cache.ReleaseLock(c.Context(), buildLockKey); err != nil {
			log.Printf("failed to release build lock: %v", err)
		}
	}()

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	positions := store.NewPositionStore(pool)
	tripStore := store.NewTripStore(pool)

	created := 0
	seen := make(map[string]bool)
	err = tripStore.RunBuild(ctx, func(s trips.Store) error {
		return positions.ForEachOrdered(ctx, func(p models.RawPosition) error {
			key := ais.PositionIdentity(p)
			if seen[key] {
				return nil
			}
			seen[key] = true
			_, wasCreated, err := s.GetOrCreateVessel(ctx, models.NewVesselFromPosition(p))
			if wasCreated {
				created++
			}
			return err
		})
	})
	if err != nil {
		return internalError(c, err)
	}

	if collector != nil {
		collector.VesselsCreated.Add(float64(created))
	}
	return c.JSON(fiber.Map{
		"message":         "vessels populated successfully",
		"vessels_created": created,
	})
}

// MVTripsCount handles GET /ais/mv_trips_count: the trips-per-vessel
// distribution, optionally limited to trips opened inside a date window.
func MVTripsCount(c *fiber.Ctx) error {
	from, to, err := parseOptionalDates(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	counts, err := store.NewTripStore(pool).TripCountsPerVessel(c.Context(), from, to)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(analytics.TripCountHistogram(counts))
}

// vesselResponse is the wire shape of a registered vessel
type vesselResponse struct {
	Key            int64   `json:"mv_key"`
	MMSI           string  `json:"mv_mmsi"`
	IMO            string  `json:"mv_imo"`
	ShipID         string  `json:"mv_ship_id"`
	ShipName       string  `json:"mv_shipname"`
	ShipType       string  `json:"mv_shiptype"`
	CallSign       string  `json:"mv_callsign"`
	Flag           string  `json:"mv_flag"`
	Length         float64 `json:"mv_length"`
	Width          float64 `json:"mv_width"`
	GRT            float64 `json:"mv_grt"`
	DWT            float64 `json:"mv_dwt"`
	YearBuilt      int     `json:"mv_year_built"`
	TypeName       string  `json:"mv_type_name"`
	AISTypeSummary string  `json:"mv_ais_type_summary"`
	DataSource     string  `json:"mv_data_source"`
}

func newVesselResponse(v models.Vessel) vesselResponse {
	return vesselResponse{
		Key:            v.Key,
		MMSI:           v.MMSI,
		IMO:            v.IMO,
		ShipID:         v.ShipID,
		ShipName:       v.ShipName,
		ShipType:       v.ShipType,
		CallSign:       v.CallSign,
		Flag:           v.Flag,
		Length:         v.Length,
		Width:          v.Width,
		GRT:            v.GRT,
		DWT:            v.DWT,
		YearBuilt:      v.YearBuilt,
		TypeName:       v.TypeName,
		AISTypeSummary: v.AISTypeSummary,
		DataSource:     string(v.DataSource),
	}
}

// vesselTripCountResponse is the projected mv_trips row
type vesselTripCountResponse struct {
	Key       int64  `json:"mv_key"`
	ShipName  string `json:"mv_ship_name"`
	TripCount int    `json:"trip_count"`
}

// vesselTripFilters are the mv_trips query knobs. Windowed marks that a
// date or search filter was supplied, which excludes zero-trip vessels.
type vesselTripFilters struct {
	MinTrips int
	MaxTrips int
	Search   string
	Windowed bool
}

// filterVesselTripCounts applies the mv_trips filters and projects the
// rows, sorted by trip count descending (vessel key breaks ties).
func filterVesselTripCounts(items []store.VesselTripCount, f vesselTripFilters) []vesselTripCountResponse {
	response := []vesselTripCountResponse{}
	for _, item := range items {
		if (f.Windowed || f.Search != "") && item.TripCount == 0 {
			continue
		}
		if f.Search != "" && !containsFold(item.Vessel.ShipName, f.Search) {
			continue
		}
		if f.MinTrips > 0 && item.TripCount < f.MinTrips {
			continue
		}
		if f.MaxTrips > 0 && item.TripCount > f.MaxTrips {
			continue
		}
		response = append(response, vesselTripCountResponse{
			Key:       item.Vessel.Key,
			ShipName:  item.Vessel.ShipName,
			TripCount: item.TripCount,
		})
	}
	sort.SliceStable(response, func(i, j int) bool {
		if response[i].TripCount != response[j].TripCount {
			return response[i].TripCount > response[j].TripCount
		}
		return response[i].Key < response[j].Key
	})
	return response
}

// MVTrips handles GET /ais/mv_trips: vessel keys and names with their
// trip counts, filterable by a date window, count bounds and a name
// search, sorted by trip count descending.
func MVTrips(c *fiber.Ctx) error {
	from, to, err := parseOptionalDates(c)
	if err != nil {
		return badRequest(c, err)
	}
	filters := vesselTripFilters{
		MinTrips: c.QueryInt("min_trips", 0),
		MaxTrips: c.QueryInt("max_trips", 0),
		Search:   strings.TrimSpace(c.Query("search")),
		Windowed: from != nil || to != nil,
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	items, err := store.NewTripStore(pool).VesselTripCounts(c.Context(), from, to)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(filterVesselTripCounts(items, filters))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// StayCount handles GET /ais/stay_count: the stay-duration histogram for
// one port.
func StayCount(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}
	port := ais.CanonicalPort(c.Query("port", "KARACHI"))

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "stay_count",
		[]string{port, from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return analytics.StayCounts(positions, port), nil
		})
}

// ShipCounts handles GET /ais/ship_counts: occupancy of the tracked ports
// plus vessels in transit. The default window is the last 49 days.
func ShipCounts(c *fiber.Ctx) error {
	from, to, err := parseDateRange(c, 49)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "ship_counts",
		[]string{from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return analytics.ShipCounts(positions, ais.TrackedPorts()), nil
		})
}

// ShipCountsWeek handles GET /ais/ship_counts_week: the weekly occupancy
// series over the requested window.
func ShipCountsWeek(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "ship_counts_week",
		[]string{from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return analytics.ShipCountsWeekly(positions, from, to, ais.TrackedPorts()), nil
		})
}

// positionResponse is the wire shape of one AIS sighting
type positionResponse struct {
	ShipID      string     `json:"ship_id"`
	MMSI        string     `json:"mmsi"`
	IMO         string     `json:"imo"`
	ShipName    string     `json:"shipname"`
	Latitude    *float64   `json:"lat"`
	Longitude   *float64   `json:"lon"`
	Speed       float64    `json:"speed"`
	Course      float64    `json:"course"`
	Heading     float64    `json:"heading"`
	Status      string     `json:"status"`
	Timestamp   *time.Time `json:"timestamp"`
	Destination string     `json:"destination"`
	ETA         *time.Time `json:"eta"`
	CurrentPort string     `json:"current_port"`
	LastPort    string     `json:"last_port"`
	NextPort    string     `json:"next_port_name"`
	Flag        string     `json:"flag"`
	TypeName    string     `json:"type_name"`
}

func newPositionResponse(p models.RawPosition) positionResponse {
	return positionResponse{
		ShipID:      p.ShipID,
		MMSI:        p.MMSI,
		IMO:         p.IMO,
		ShipName:    p.ShipName,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Speed:       p.Speed,
		Course:      p.Course,
		Heading:     p.Heading,
		Status:      p.Status,
		Timestamp:   p.Timestamp,
		Destination: p.Destination,
		ETA:         p.ETA,
		CurrentPort: p.CurrentPort,
		LastPort:    p.LastPort,
		NextPort:    p.NextPortName,
		Flag:        p.Flag,
		TypeName:    p.TypeName,
	}
}

// VesselPosition handles GET /ais/vessel_position: the position history of
// one ship, or the latest position of every ship when no ship_id is given.
func VesselPosition(c *fiber.Ctx) error {
	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	positions := store.NewPositionStore(pool)

	var rows []models.RawPosition
	if shipID := c.Query("ship_id"); shipID != "" {
		rows, err = positions.PositionsForShip(c.Context(), shipID)
	} else {
		rows, err = positions.LatestPerShip(c.Context())
	}
	if err != nil {
		return internalError(c, err)
	}

	response := make([]positionResponse, 0, len(rows))
	for _, p := range rows {
		response = append(response, newPositionResponse(p))
	}
	return c.JSON(response)
}

// FlagCountsHandler handles GET /ais/flag_counts: unique vessels per flag,
// optionally restricted to one port.
func FlagCountsHandler(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}
	port := c.Query("port")
	if port != "" {
		port = ais.CanonicalPort(port)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "flag_counts",
		[]string{port, from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return analytics.FlagCounts(positions, port), nil
		})
}

// TypeCountsHandler handles GET /ais/type_counts: unique vessels per AIS
// type, optionally restricted to one port (exact name, anchorages
// separate).
func TypeCountsHandler(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}
	port := c.Query("port")

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "type_counts",
		[]string{port, from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return analytics.TypeCounts(positions, port), nil
		})
}

// MerDurationAtSea handles GET /ais/mer_duration_at_sea: observed span per
// vessel bucketed into the three standard ranges.
func MerDurationAtSea(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_duration_at_sea",
		[]string{from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return analytics.DurationAtSea(positions), nil
		})
}

// MerFVCon handles GET /ais/mer_fv_con: the vessel-density heatmap as a
// GeoJSON feature array. A complete date window narrows the scan;
// otherwise every sighting counts.
func MerFVCon(c *fiber.Ctx) error {
	from, to, err := parseOptionalDates(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	params := []string{"", ""}
	if from != nil && to != nil {
		params = []string{from.Format(dateLayout), to.Format(dateLayout)}
	}
	return respondCached(c, "mer_fv_con", params,
		func() (interface{}, error) {
			positions := store.NewPositionStore(pool)
			var rows []models.RawPosition
			var err error
			if from != nil && to != nil {
				rows, err = positions.Range(c.Context(), *from, *to)
			} else {
				rows, err = positions.All(c.Context())
			}
			if err != nil {
				return nil, err
			}
			return analytics.HeatmapFeatures(rows), nil
		})
}
