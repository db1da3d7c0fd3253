package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/seatrace/seatrace_core/internal/ais"
	"github.com/seatrace/seatrace_core/internal/models"
)

// Dimension selects how visit counts are broken down
type Dimension string

const (
	DimAll      Dimension = "all"
	DimPort     Dimension = "harbor"
	DimType     Dimension = "type"
	DimPortType Dimension = "harbor and type"
)

// ParseDimension validates a filter query value
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case DimAll, DimPort, DimType, DimPortType:
		return Dimension(s), nil
	}
	return "", fmt.Errorf("unknown filter value %q", s)
}

// Counts holds one arrival/departure cell. Departures are accumulated as
// non-positive numbers so charts can mirror them below the axis.
type Counts struct {
	Arrival   int `json:"arrival"`
	Departure int `json:"departure"`
}

// ArrDep is the positive-departure variant used by the per-port
// leave/enter series
type ArrDep struct {
	Arrivals   int `json:"arrivals"`
	Departures int `json:"departures"`
}

// Params are the common knobs of a reconciliation request
type Params struct {
	From        time.Time
	To          time.Time
	Granularity Granularity
	Dimension   Dimension
	Harbor      string   // narrows the port universe to one port
	Types       []string // narrows the type/country universe
}

// VisitResult is one bucket of reconciled port visits. Only the field
// matching the requested dimension is populated.
type VisitResult struct {
	Bucket    Bucket
	Ports     map[string]*Counts
	Types     map[string]*Counts
	PortTypes map[string]map[string]*Counts
	Total     Counts
}

// ActivityResult is one bucket of distinct-sighting counts
type ActivityResult struct {
	Bucket    Bucket
	Ports     map[string]int
	Types     map[string]int
	PortTypes map[string]map[string]int
	Total     int
}

// FlagResult is one bucket of destination-country counts
type FlagResult struct {
	Bucket        Bucket
	PortCountries map[string]map[string]int
	Countries     map[string]int
}

// Reconciler derives arrival/departure and sighting aggregates from a raw
// position window. It holds no cross-request state; every invocation
// carries its own dedup sets.
type Reconciler struct {
	tracked []string
}

// New creates a reconciler over the given tracked-port allow-list.
func New(tracked []string) *Reconciler {
	return &Reconciler{tracked: tracked}
}

// arrivalKey dedups arrival credits: one per (identity, port) per invocation
type arrivalKey struct {
	identity string
	port     string
}

type arrivalState struct {
	departed bool
}

// Visits reconciles arrivals and departures per bucket. An arrival is the
// first sighting of an identity at a tracked port within the request; a
// departure is inferred by replaying that identity's positions inside each
// bucket window until a port transition passes the last/next-port check.
// Each arrival yields at most one departure credit across the whole
// invocation.
func (r *Reconciler) Visits(positions []models.RawPosition, p Params) []VisitResult {
	locations := r.locations(p)
	types := typeUniverse(positions, p.Types)
	byIdentity := groupByIdentity(positions)
	arrivals := make(map[arrivalKey]*arrivalState)

	var results []VisitResult
	for _, bucket := range Walk(p.From, p.To, p.Granularity) {
		res := VisitResult{Bucket: bucket}
		switch p.Dimension {
		case DimPort:
			res.Ports = zeroCounts(locations)
		case DimType:
			res.Types = zeroCounts(types)
		case DimPortType:
			res.PortTypes = make(map[string]map[string]*Counts, len(locations))
			for _, loc := range locations {
				res.PortTypes[loc] = zeroCounts(types)
			}
		}

		// Arrival pass: first sighting of (identity, port) in the whole
		// request window counts once, in the bucket it first appears.
		for _, pos := range positionsIn(bucket, positions) {
			if !contains(locations, pos.CurrentPort) {
				continue
			}
			if len(p.Types) > 0 && p.Dimension != DimPort && p.Dimension != DimAll &&
				!contains(p.Types, pos.AISTypeSummary) {
				continue
			}
			key := arrivalKey{identity: ais.PositionIdentity(pos), port: pos.CurrentPort}
			if _, seen := arrivals[key]; seen {
				continue
			}
			arrivals[key] = &arrivalState{}
			switch p.Dimension {
			case DimPort:
				res.Ports[key.port].Arrival++
			case DimType:
				if c, ok := res.Types[pos.AISTypeSummary]; ok {
					c.Arrival++
				}
			case DimPortType:
				if byType, ok := res.PortTypes[key.port]; ok {
					if c, ok := byType[pos.AISTypeSummary]; ok {
						c.Arrival++
					}
				}
			case DimAll:
				res.Total.Arrival++
			}
		}

		// Departure pass: every credited, not-yet-departed arrival is
		// replayed against this bucket's positions.
		for key, state := range arrivals {
			if state.departed {
				continue
			}
			r.replayDeparture(key, state, positionsIn(bucket, byIdentity[key.identity]), &res, p, locations, types)
		}

		results = append(results, res)
	}
	return results
}

// replayDeparture walks one identity's bucket positions starting from the
// arrival port. A transition away from previous_port counts as a departure
// only when the vessel's reported last port already moved on and its next
// port is not the port being left (or is unreported); otherwise the scan
// advances and re-checks at the next transition. Vessels with no
// qualifying transition stay "present" and record nothing.
func (r *Reconciler) replayDeparture(key arrivalKey, state *arrivalState, replay []models.RawPosition, res *VisitResult, p Params, locations, types []string) {
	previous := key.port
	for _, pos := range replay {
		current := pos.CurrentPort
		if current != previous {
			if pos.LastPort != previous && (pos.NextPortName != previous || pos.NextPortName == "") {
				switch p.Dimension {
				case DimPort:
					if c, ok := res.Ports[previous]; ok {
						c.Departure--
						state.departed = true
					}
				case DimType:
					if contains(locations, previous) {
						if c, ok := res.Types[pos.AISTypeSummary]; ok {
							c.Departure--
							state.departed = true
						}
					}
				case DimPortType:
					if byType, ok := res.PortTypes[previous]; ok {
						if c, ok := byType[pos.AISTypeSummary]; ok {
							c.Departure--
							state.departed = true
						}
					}
				case DimAll:
					if contains(locations, previous) {
						res.Total.Departure--
						state.departed = true
					}
				}
				return
			}
		}
		previous = current
	}
}

// Activity counts distinct (identity, ship, port, type) sightings per
// bucket, zero-filled against the request-wide universe.
func (r *Reconciler) Activity(positions []models.RawPosition, p Params) []ActivityResult {
	locations := r.locations(p)
	types := typeUniverse(positions, p.Types)

	var results []ActivityResult
	for _, bucket := range Walk(p.From, p.To, p.Granularity) {
		res := ActivityResult{Bucket: bucket}
		seen := make(map[sightingKey]bool)

		switch p.Dimension {
		case DimPort:
			res.Ports = zeroInts(locations)
		case DimType:
			res.Types = zeroInts(types)
		case DimPortType:
			res.PortTypes = make(map[string]map[string]int, len(locations))
			for _, loc := range locations {
				res.PortTypes[loc] = zeroInts(types)
			}
		}

		for _, pos := range positionsIn(bucket, positions) {
			if p.Harbor != "" && pos.CurrentPort != p.Harbor {
				continue
			}
			if len(p.Types) > 0 && p.Dimension != DimPort && p.Dimension != DimAll &&
				!contains(p.Types, pos.AISTypeSummary) {
				continue
			}
			key := sightingKey{
				identity: ais.PositionIdentity(pos),
				shipID:   pos.ShipID,
				port:     pos.CurrentPort,
				value:    pos.AISTypeSummary,
			}
			if p.Dimension == DimPort || p.Dimension == DimAll {
				key.value = ""
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			switch p.Dimension {
			case DimPort:
				if _, ok := res.Ports[key.port]; ok {
					res.Ports[key.port]++
				}
			case DimType:
				if !contains(locations, key.port) {
					continue
				}
				if _, ok := res.Types[key.value]; ok {
					res.Types[key.value]++
				}
			case DimPortType:
				if byType, ok := res.PortTypes[key.port]; ok {
					if _, ok := byType[key.value]; ok {
						byType[key.value]++
					}
				}
			case DimAll:
				if contains(locations, key.port) {
					res.Total++
				}
			}
		}

		results = append(results, res)
	}
	return results
}

// FlagCounts counts distinct sightings per destination country, resolving
// country codes to display names through resolve (unresolvable codes fall
// back to the raw code inside resolve).
func (r *Reconciler) FlagCounts(positions []models.RawPosition, p Params, resolve func(string) string) []FlagResult {
	locations := r.locations(p)
	countries := countryUniverse(positions, p.Types)

	var results []FlagResult
	for _, bucket := range Walk(p.From, p.To, p.Granularity) {
		res := FlagResult{Bucket: bucket}
		seen := make(map[sightingKey]bool)

		switch p.Dimension {
		case DimPortType:
			res.PortCountries = make(map[string]map[string]int, len(locations))
			for _, loc := range locations {
				named := make(map[string]int, len(countries))
				for _, c := range countries {
					named[resolve(c)] = 0
				}
				res.PortCountries[loc] = named
			}
		default:
			res.Countries = make(map[string]int, len(countries))
			for _, c := range countries {
				res.Countries[resolve(c)] = 0
			}
		}

		for _, pos := range positionsIn(bucket, positions) {
			if p.Harbor != "" && pos.CurrentPort != p.Harbor {
				continue
			}
			if len(p.Types) > 0 && !contains(p.Types, pos.NextPortCountry) {
				continue
			}
			key := sightingKey{
				identity: ais.PositionIdentity(pos),
				shipID:   pos.ShipID,
				port:     pos.CurrentPort,
				value:    pos.NextPortCountry,
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			name := resolve(pos.NextPortCountry)
			switch p.Dimension {
			case DimPortType:
				if named, ok := res.PortCountries[key.port]; ok {
					if _, ok := named[name]; ok {
						named[name]++
					}
				}
			default:
				if !contains(locations, key.port) {
					continue
				}
				if _, ok := res.Countries[name]; ok {
					res.Countries[name]++
				}
			}
		}

		results = append(results, res)
	}
	return results
}

// LeaveEnterItem is one entry of the arrivals/departures series.
// Departures are emitted negative by convention.
type LeaveEnterItem struct {
	Date       string `json:"date"`
	Arrivals   int    `json:"arrivals"`
	Departures int    `json:"departures"`
}

// LeaveEnter builds the arrivals/departures series for one port. Each
// bucket yields two items under the same label: the port-filtered counts
// followed by the all-ports totals.
func LeaveEnter(positions []models.RawPosition, from, to time.Time, port string) []LeaveEnterItem {
	items := []LeaveEnterItem{}
	for _, bucket := range Walk(from, to, AutoGranularity(from, to)) {
		window := positionsIn(bucket, positions)

		arrivals := make(map[string]bool)
		departures := make(map[string]bool)
		totalArrivals := make(map[string]bool)
		totalDepartures := make(map[string]bool)
		for _, pos := range window {
			if pos.CurrentPort == port {
				arrivals[pos.IMO] = true
			}
			if pos.LastPort == port {
				departures[pos.IMO] = true
			}
			if pos.CurrentPort != "" {
				totalArrivals[pos.IMO] = true
			}
			if pos.LastPort != "" {
				totalDepartures[pos.IMO] = true
			}
		}

		label := bucket.DateLabel()
		items = append(items,
			LeaveEnterItem{Date: label, Arrivals: len(arrivals), Departures: -len(departures)},
			LeaveEnterItem{Date: label, Arrivals: len(totalArrivals), Departures: -len(totalDepartures)},
		)
	}
	return items
}

// PortLeaveEnterItem is one bucket of the per-port leave/enter series
type PortLeaveEnterItem struct {
	Date  string
	Ports map[string]*ArrDep
}

// PortLeaveEnter builds per-port arrival/departure counts per bucket over
// every port observed in the window. A boat_location filter restricts
// which rows may contribute, not which ports appear.
func PortLeaveEnter(positions []models.RawPosition, from, to time.Time, boatLocation string) []PortLeaveEnterItem {
	portList := distinctPorts(positions)

	items := []PortLeaveEnterItem{}
	for _, bucket := range Walk(from, to, AutoGranularity(from, to)) {
		ports := make(map[string]*ArrDep, len(portList))
		for _, port := range portList {
			ports[port] = &ArrDep{}
		}

		arrivalIMOs := make(map[arrivalKey]bool)
		departureIMOs := make(map[arrivalKey]bool)
		for _, pos := range positionsIn(bucket, positions) {
			if pos.CurrentPort != "" && (boatLocation == "" || pos.CurrentPort == boatLocation) {
				k := arrivalKey{identity: pos.IMO, port: pos.CurrentPort}
				if !arrivalIMOs[k] {
					arrivalIMOs[k] = true
					if c, ok := ports[pos.CurrentPort]; ok {
						c.Arrivals++
					}
				}
			}
			if pos.LastPort != "" && (boatLocation == "" || pos.LastPort == boatLocation) {
				k := arrivalKey{identity: pos.IMO, port: pos.LastPort}
				if !departureIMOs[k] {
					departureIMOs[k] = true
					if c, ok := ports[pos.LastPort]; ok {
						c.Departures++
					}
				}
			}
		}

		items = append(items, PortLeaveEnterItem{Date: bucket.DateLabel(), Ports: ports})
	}
	return items
}

// PortActivityItem is one bucket of distinct-vessel counts per port
type PortActivityItem struct {
	Bucket Bucket
	Ports  map[string]int
}

// PortActivity counts distinct vessels sighted per port per bucket,
// zero-filled across every port observed in the window (empty port name
// included, as reported for vessels in transit).
func PortActivity(positions []models.RawPosition, from, to time.Time) []PortActivityItem {
	universe := make(map[string]bool)
	for _, pos := range positions {
		universe[pos.CurrentPort] = true
	}

	items := []PortActivityItem{}
	for _, bucket := range Walk(from, to, AutoGranularity(from, to)) {
		counts := make(map[string]int, len(universe))
		for port := range universe {
			counts[port] = 0
		}
		seen := make(map[arrivalKey]bool)
		for _, pos := range positionsIn(bucket, positions) {
			k := arrivalKey{identity: ais.PositionIdentity(pos), port: pos.CurrentPort}
			if seen[k] {
				continue
			}
			seen[k] = true
			counts[pos.CurrentPort]++
		}
		items = append(items, PortActivityItem{Bucket: bucket, Ports: counts})
	}
	return items
}

// helpers

type sightingKey struct {
	identity string
	shipID   string
	port     string
	value    string
}

func (r *Reconciler) locations(p Params) []string {
	if p.Harbor != "" {
		return []string{p.Harbor}
	}
	out := make([]string, len(r.tracked))
	copy(out, r.tracked)
	return out
}

// typeUniverse is the request-wide set of vessel types every bucket is
// zero-filled against
func typeUniverse(positions []models.RawPosition, override []string) []string {
	if len(override) > 0 {
		return override
	}
	return distinctNonEmpty(positions, func(p models.RawPosition) string { return p.AISTypeSummary })
}

func countryUniverse(positions []models.RawPosition, override []string) []string {
	if len(override) > 0 {
		return override
	}
	return distinctNonEmpty(positions, func(p models.RawPosition) string { return p.NextPortCountry })
}

func distinctNonEmpty(positions []models.RawPosition, field func(models.RawPosition) string) []string {
	set := make(map[string]bool)
	for _, p := range positions {
		if v := field(p); v != "" {
			set[v] = true
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func distinctPorts(positions []models.RawPosition) []string {
	return distinctNonEmpty(positions, func(p models.RawPosition) string { return p.CurrentPort })
}

func positionsIn(bucket Bucket, positions []models.RawPosition) []models.RawPosition {
	var out []models.RawPosition
	for _, p := range positions {
		if bucket.Contains(p.Timestamp) {
			out = append(out, p)
		}
	}
	return out
}

func groupByIdentity(positions []models.RawPosition) map[string][]models.RawPosition {
	groups := make(map[string][]models.RawPosition)
	for _, p := range positions {
		id := ais.PositionIdentity(p)
		groups[id] = append(groups[id], p)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			ti, tj := group[i].Timestamp, group[j].Timestamp
			if ti == nil || tj == nil {
				return tj != nil
			}
			return ti.Before(*tj)
		})
	}
	return groups
}

func zeroCounts(keys []string) map[string]*Counts {
	m := make(map[string]*Counts, len(keys))
	for _, k := range keys {
		m[k] = &Counts{}
	}
	return m
}

func zeroInts(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for _, k := range keys {
		m[k] = 0
	}
	return m
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
