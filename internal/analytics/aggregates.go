package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/seatrace/seatrace_core/internal/ais"
	"github.com/seatrace/seatrace_core/internal/models"
)

// HistogramItem is one row of the trips-per-vessel distribution
type HistogramItem struct {
	TripCount int `json:"trip_count"`
	ShipCount int `json:"ship_count"`
}

// TripCountHistogram turns per-vessel trip counts into a distribution of
// how many vessels made exactly k trips, sorted by k.
func TripCountHistogram(tripCounts []int) []HistogramItem {
	counter := make(map[int]int)
	for _, c := range tripCounts {
		counter[c]++
	}

	keys := make([]int, 0, len(counter))
	for k := range counter {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	items := make([]HistogramItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, HistogramItem{TripCount: k, ShipCount: counter[k]})
	}
	return items
}

// StayCounts histograms how many whole days each ship spent at the given
// port (canonicalized), keyed by a "N day(s)" label. Same-day visits are
// excluded.
func StayCounts(positions []models.RawPosition, port string) map[string]int {
	type span struct {
		first, last time.Time
		set         bool
	}
	spans := make(map[string]*span)
	for _, p := range positions {
		if p.Timestamp == nil || ais.CanonicalPort(p.CurrentPort) != port {
			continue
		}
		s, ok := spans[p.ShipID]
		if !ok {
			s = &span{}
			spans[p.ShipID] = s
		}
		if !s.set {
			s.first, s.last, s.set = *p.Timestamp, *p.Timestamp, true
			continue
		}
		if p.Timestamp.Before(s.first) {
			s.first = *p.Timestamp
		}
		if p.Timestamp.After(s.last) {
			s.last = *p.Timestamp
		}
	}

	counts := make(map[string]int)
	for _, s := range spans {
		days := int(s.last.Sub(s.first).Hours() / 24)
		if days <= 0 {
			continue
		}
		label := fmt.Sprintf("%d day", days)
		if days > 1 {
			label = fmt.Sprintf("%d days", days)
		}
		counts[label]++
	}
	return counts
}

// Crossing is the occupancy bin for vessels reporting no current port
const Crossing = "CROSSING"

// ShipCounts tallies distinct (ship, port) sightings into the tracked
// ports plus the CROSSING bin, anchorage variants folded in.
func ShipCounts(positions []models.RawPosition, tracked []string) map[string]int {
	counts := make(map[string]int, len(tracked)+1)
	for _, port := range tracked {
		counts[port] = 0
	}
	counts[Crossing] = 0

	type pair struct{ ship, port string }
	seen := make(map[pair]bool)
	for _, p := range positions {
		k := pair{ship: p.ShipID, port: p.CurrentPort}
		if seen[k] {
			continue
		}
		seen[k] = true

		if p.CurrentPort == "" {
			counts[Crossing]++
			continue
		}
		canonical := ais.CanonicalPort(p.CurrentPort)
		if _, ok := counts[canonical]; ok {
			counts[canonical]++
		}
	}
	return counts
}

// WeeklyShipCounts is one week of port occupancy
type WeeklyShipCounts struct {
	WeekStart string         `json:"Week Start"`
	WeekEnd   string         `json:"Week End"`
	Counts    map[string]int `json:"Counts"`
}

// ShipCountsWeekly produces the occupancy series week by week. The last
// week runs a full seven days even when it overshoots the range end.
func ShipCountsWeekly(positions []models.RawPosition, from, to time.Time, tracked []string) []WeeklyShipCounts {
	totalWeeks := int(to.Sub(from).Hours()/24)/7 + 1

	weeks := make([]WeeklyShipCounts, 0, totalWeeks)
	for w := 0; w < totalWeeks; w++ {
		weekStart := from.AddDate(0, 0, 7*w)
		weekEnd := weekStart.AddDate(0, 0, 6)

		var window []models.RawPosition
		for _, p := range positions {
			if p.Timestamp == nil {
				continue
			}
			if !p.Timestamp.Before(weekStart) && !p.Timestamp.After(weekEnd) {
				window = append(window, p)
			}
		}

		weeks = append(weeks, WeeklyShipCounts{
			WeekStart: weekStart.Format("2006-01-02"),
			WeekEnd:   weekEnd.Format("2006-01-02"),
			Counts:    ShipCounts(window, tracked),
		})
	}
	return weeks
}

// FlagCounts counts distinct ships per flag, optionally restricted to one
// (canonicalized) port. The last sighting wins when a ship's flag varies.
func FlagCounts(positions []models.RawPosition, port string) map[string]int {
	flags := make(map[string]string)
	order := []string{}
	for _, p := range positions {
		if port != "" && ais.CanonicalPort(p.CurrentPort) != port {
			continue
		}
		if _, ok := flags[p.ShipID]; !ok {
			order = append(order, p.ShipID)
		}
		flags[p.ShipID] = p.Flag
	}

	counts := make(map[string]int)
	for _, ship := range order {
		counts[flags[ship]]++
	}
	return counts
}

// TypeCounts counts distinct ships per AIS type summary, optionally
// restricted to one port (matched before canonicalization). The first
// sighting of a ship decides its type.
func TypeCounts(positions []models.RawPosition, port string) map[string]int {
	counts := make(map[string]int)
	seen := make(map[string]bool)
	for _, p := range positions {
		if port != "" && p.CurrentPort != port {
			continue
		}
		if seen[p.ShipID] {
			continue
		}
		seen[p.ShipID] = true
		counts[p.AISTypeSummary]++
	}
	return counts
}

// DurationBuckets categorizes time spent at sea per vessel
type DurationBuckets struct {
	LessThan15     int `json:"less than 15 days"`
	Between15And30 int `json:"between 15 and 30 days"`
	GreaterThan30  int `json:"greater than 30 days"`
}

// DurationAtSea buckets each identity's observed span (max minus min
// timestamp) into the three standard ranges.
func DurationAtSea(positions []models.RawPosition) DurationBuckets {
	type span struct {
		min, max time.Time
		set      bool
	}
	spans := make(map[string]*span)
	for _, p := range positions {
		if p.Timestamp == nil {
			continue
		}
		id := ais.PositionIdentity(p)
		s, ok := spans[id]
		if !ok {
			s = &span{}
			spans[id] = s
		}
		if !s.set {
			s.min, s.max, s.set = *p.Timestamp, *p.Timestamp, true
			continue
		}
		if p.Timestamp.Before(s.min) {
			s.min = *p.Timestamp
		}
		if p.Timestamp.After(s.max) {
			s.max = *p.Timestamp
		}
	}

	var buckets DurationBuckets
	for _, s := range spans {
		d := s.max.Sub(s.min)
		switch {
		case d < 15*24*time.Hour:
			buckets.LessThan15++
		case d <= 30*24*time.Hour:
			buckets.Between15And30++
		default:
			buckets.GreaterThan30++
		}
	}
	return buckets
}

// heatmapGridSize quantizes positions to ~0.1 degree cells
const heatmapGridSize = 0.1

// Geometry is a GeoJSON point
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

// FeatureProperties carries the cell density
type FeatureProperties struct {
	Intensity int `json:"intensity"`
}

// Feature is one GeoJSON heatmap cell
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// HeatmapFeatures grid-quantizes the latest position of each IMO into
// 0.1 degree density cells rendered as GeoJSON point features.
func HeatmapFeatures(positions []models.RawPosition) []Feature {
	latest := make(map[string]models.RawPosition)
	for _, p := range positions {
		if prev, ok := latest[p.IMO]; !ok || p.ID > prev.ID {
			latest[p.IMO] = p
		}
	}

	type cell struct{ lat, lon float64 }
	density := make(map[cell]int)
	for _, p := range latest {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		c := cell{
			lat: math.Round(*p.Latitude/heatmapGridSize) * heatmapGridSize,
			lon: math.Round(*p.Longitude/heatmapGridSize) * heatmapGridSize,
		}
		density[c]++
	}

	features := make([]Feature, 0, len(density))
	for c, n := range density {
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{c.lon, c.lat},
			},
			Properties: FeatureProperties{Intensity: n},
		})
	}
	sort.Slice(features, func(i, j int) bool {
		a, b := features[i].Geometry.Coordinates, features[j].Geometry.Coordinates
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[0] < b[0]
	})
	return features
}
