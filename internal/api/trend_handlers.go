package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/seatrace/seatrace_core/internal/ais"
	"github.com/seatrace/seatrace_core/internal/countries"
	"github.com/seatrace/seatrace_core/internal/db"
	"github.com/seatrace/seatrace_core/internal/reconcile"
	"github.com/seatrace/seatrace_core/internal/store"
)

// parseTrendParams reads the shared knobs of the visual trend endpoints:
// filter (dimension), harbor, type (comma-separated) and group_by.
func parseTrendParams(c *fiber.Ctx) (reconcile.Params, error) {
	from, to, err := requireDateRange(c)
	if err != nil {
		return reconcile.Params{}, err
	}

	params := reconcile.Params{
		From:        from,
		To:          to,
		Granularity: reconcile.AutoGranularity(from, to),
		Dimension:   reconcile.DimAll,
		Harbor:      c.Query("harbor"),
	}

	if s := c.Query("filter"); s != "" {
		dim, err := reconcile.ParseDimension(s)
		if err != nil {
			return reconcile.Params{}, err
		}
		params.Dimension = dim
	}
	if s := c.Query("group_by"); s != "" {
		g, err := reconcile.ParseGranularity(s)
		if err != nil {
			return reconcile.Params{}, err
		}
		params.Granularity = g
	}
	if s := c.Query("type"); s != "" {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				params.Types = append(params.Types, t)
			}
		}
	}
	return params, nil
}

// MerActivityTrend handles GET /ais/mer_activity_trend: distinct vessels
// sighted per port per bucket, day or month granularity picked from the
// window size.
func MerActivityTrend(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_activity_trend",
		[]string{from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}

			items := reconcile.PortActivity(positions, from, to)
			payload := make([]map[string]interface{}, 0, len(items))
			for _, item := range items {
				m := item.Bucket.Meta()
				for port, count := range item.Ports {
					m[port] = count
				}
				payload = append(payload, m)
			}
			return payload, nil
		})
}

// MerLeaveEnter handles GET /ais/mer_leave_enter: arrivals and departures
// per bucket for one port, each bucket followed by the all-ports totals
// under the same date label. Departures come back negative. boat_location
// is required.
func MerLeaveEnter(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}
	boatLocation := c.Query("boat_location")
	if boatLocation == "" {
		return badRequest(c, fmt.Errorf("missing required parameter: boat_location"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_leave_enter",
		[]string{boatLocation, from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}
			return reconcile.LeaveEnter(positions, from, to, boatLocation), nil
		})
}

// flattenPortItem lays the per-port counts of one bucket flat beside its
// date label.
func flattenPortItem(item reconcile.PortLeaveEnterItem) map[string]interface{} {
	m := map[string]interface{}{"date": item.Date}
	for port, counts := range item.Ports {
		m[port] = counts
	}
	return m
}

// MerMVLeaveEnter handles GET /ais/mer_mv_leave_enter: per-port arrivals
// and departures per bucket. boat_location optionally restricts which
// sightings contribute; without it every sighting counts.
func MerMVLeaveEnter(c *fiber.Ctx) error {
	from, to, err := requireDateRange(c)
	if err != nil {
		return badRequest(c, err)
	}
	boatLocation := c.Query("boat_location")

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_mv_leave_enter",
		[]string{boatLocation, from.Format(dateLayout), to.Format(dateLayout)},
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), from, to)
			if err != nil {
				return nil, err
			}

			items := reconcile.PortLeaveEnter(positions, from, to, boatLocation)
			payload := make([]map[string]interface{}, 0, len(items))
			for _, item := range items {
				payload = append(payload, flattenPortItem(item))
			}
			return payload, nil
		})
}

// MerVisualActTrend handles GET /ais/mer_visual_act_trend: distinct
// sightings per bucket, split by the requested dimension.
func MerVisualActTrend(c *fiber.Ctx) error {
	params, err := parseTrendParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_visual_act_trend", trendCacheParams(params),
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), params.From, params.To)
			if err != nil {
				return nil, err
			}

			results := reconcile.New(ais.TrackedPorts()).Activity(positions, params)
			payload := make([]map[string]interface{}, 0, len(results))
			for _, res := range results {
				m := res.Bucket.Meta()
				switch params.Dimension {
				case reconcile.DimAll:
					m["count"] = res.Total
				case reconcile.DimPort:
					for port, count := range res.Ports {
						m[port] = count
					}
				case reconcile.DimType:
					for typ, count := range res.Types {
						m[typ] = count
					}
				case reconcile.DimPortType:
					for port, perType := range res.PortTypes {
						m[port] = perType
					}
				}
				payload = append(payload, m)
			}
			return payload, nil
		})
}

// MerVisualHarbor handles GET /ais/mer_visual_harbor: reconciled arrivals
// and departures per bucket, split by the requested dimension. Departures
// are negative.
func MerVisualHarbor(c *fiber.Ctx) error {
	params, err := parseTrendParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_visual_harbor", trendCacheParams(params),
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), params.From, params.To)
			if err != nil {
				return nil, err
			}

			results := reconcile.New(ais.TrackedPorts()).Visits(positions, params)
			payload := make([]map[string]interface{}, 0, len(results))
			for _, res := range results {
				m := res.Bucket.Meta()
				switch params.Dimension {
				case reconcile.DimAll:
					m["arrival"] = res.Total.Arrival
					m["departure"] = res.Total.Departure
				case reconcile.DimPort:
					for port, counts := range res.Ports {
						m[port] = counts
					}
				case reconcile.DimType:
					for typ, counts := range res.Types {
						m[typ] = counts
					}
				case reconcile.DimPortType:
					for port, perType := range res.PortTypes {
						m[port] = perType
					}
				}
				payload = append(payload, m)
			}
			return payload, nil
		})
}

// MerVisualFlagCount handles GET /ais/mer_visual_flag_count: distinct
// vessels per destination country per bucket, country codes resolved to
// names.
func MerVisualFlagCount(c *fiber.Ctx) error {
	params, err := parseTrendParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	return respondCached(c, "mer_visual_flag_count", trendCacheParams(params),
		func() (interface{}, error) {
			positions, err := store.NewPositionStore(pool).Range(c.Context(), params.From, params.To)
			if err != nil {
				return nil, err
			}

			results := reconcile.New(ais.TrackedPorts()).FlagCounts(positions, params, countries.Name)
			payload := make([]map[string]interface{}, 0, len(results))
			for _, res := range results {
				m := res.Bucket.Meta()
				if res.PortCountries != nil {
					for port, perCountry := range res.PortCountries {
						m[port] = perCountry
					}
				} else {
					for country, count := range res.Countries {
						m[country] = count
					}
				}
				payload = append(payload, m)
			}
			return payload, nil
		})
}

func trendCacheParams(params reconcile.Params) []string {
	return []string{
		params.From.Format(dateLayout),
		params.To.Format(dateLayout),
		string(params.Granularity),
		string(params.Dimension),
		params.Harbor,
		strings.Join(params.Types, ","),
	}
}
