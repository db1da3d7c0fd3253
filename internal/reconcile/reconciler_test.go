package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatrace/seatrace_core/internal/models"
)

var trackedPorts = []string{"KARACHI", "PORT QASIM", "GWADAR"}

func sighting(imo, port string, day int) models.RawPosition {
	ts := time.Date(2024, time.March, day, 12, 0, 0, 0, time.UTC)
	return models.RawPosition{
		IMO:         imo,
		MMSI:        "m-" + imo,
		ShipID:      "s-" + imo,
		CurrentPort: port,
		Timestamp:   &ts,
	}
}

func dayParams(fromDay, toDay int, dim Dimension) Params {
	return Params{
		From:        date(2024, time.March, fromDay),
		To:          date(2024, time.March, toDay),
		Granularity: ByDay,
		Dimension:   dim,
	}
}

func TestVisitsArrivalDedupAcrossBuckets(t *testing.T) {
	positions := []models.RawPosition{
		sighting("9434761", "KARACHI", 1),
		sighting("9434761", "KARACHI", 2),
		sighting("9434761", "KARACHI", 3),
	}

	results := New(trackedPorts).Visits(positions, dayParams(1, 3, DimPort))
	require.Len(t, results, 3)

	// credited once, in the bucket of the first sighting
	assert.Equal(t, 1, results[0].Ports["KARACHI"].Arrival)
	assert.Equal(t, 0, results[1].Ports["KARACHI"].Arrival)
	assert.Equal(t, 0, results[2].Ports["KARACHI"].Arrival)

	// the port universe is zero-filled in every bucket
	for _, res := range results {
		assert.Contains(t, res.Ports, "PORT QASIM")
		assert.Contains(t, res.Ports, "GWADAR")
		assert.Equal(t, 0, res.Ports["GWADAR"].Arrival)
	}
}

func TestVisitsDepartureRequiresLastAndNextPortCheck(t *testing.T) {
	arrived := sighting("9434761", "KARACHI", 1)

	// still reporting KARACHI as its last port: not yet departed
	lingering := sighting("9434761", "GWADAR", 2)
	lingering.LastPort = "KARACHI"

	// last port moved on and next port is elsewhere: departs
	departed := sighting("9434761", "GWADAR", 3)
	departed.LastPort = "PORT QASIM"
	departed.NextPortName = "JEBEL ALI"

	positions := []models.RawPosition{arrived, lingering, departed}
	results := New(trackedPorts).Visits(positions, dayParams(1, 3, DimPort))
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[1].Ports["KARACHI"].Departure)
	assert.Equal(t, -1, results[2].Ports["KARACHI"].Departure)
}

func TestVisitsAtMostOneDeparturePerArrival(t *testing.T) {
	arrived := sighting("9434761", "KARACHI", 1)

	departedA := sighting("9434761", "GWADAR", 2)
	departedA.LastPort = "PORT QASIM"
	departedA.NextPortName = "JEBEL ALI"

	// a qualifying transition again in a later bucket must not credit
	// a second departure for the same arrival
	departedB := sighting("9434761", "PORT QASIM", 3)
	departedB.LastPort = "SALALAH"
	departedB.NextPortName = "JEBEL ALI"

	positions := []models.RawPosition{arrived, departedA, departedB}
	results := New(trackedPorts).Visits(positions, dayParams(1, 3, DimPort))

	totalDepartures := 0
	for _, res := range results {
		totalDepartures += res.Ports["KARACHI"].Departure
	}
	assert.Equal(t, -1, totalDepartures)
}

func TestVisitsDimAllTotals(t *testing.T) {
	positions := []models.RawPosition{
		sighting("9434761", "KARACHI", 1),
		sighting("1234567", "GWADAR", 1),
		sighting("7654321", "JEBEL ALI", 1), // not tracked
	}

	results := New(trackedPorts).Visits(positions, dayParams(1, 1, DimAll))
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Total.Arrival)
}

func TestActivityDistinctSightings(t *testing.T) {
	positions := []models.RawPosition{
		sighting("9434761", "KARACHI", 1),
		sighting("9434761", "KARACHI", 1), // duplicate sighting, same bucket
		sighting("1234567", "KARACHI", 1),
		sighting("9434761", "KARACHI", 2), // new bucket, counts again
	}

	results := New(trackedPorts).Activity(positions, dayParams(1, 2, DimPort))
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Ports["KARACHI"])
	assert.Equal(t, 1, results[1].Ports["KARACHI"])
	assert.Equal(t, 0, results[0].Ports["GWADAR"])
}

func TestFlagCountsResolvesCountries(t *testing.T) {
	a := sighting("9434761", "KARACHI", 1)
	a.NextPortCountry = "AE"
	b := sighting("1234567", "KARACHI", 1)
	b.NextPortCountry = "AE"
	c := sighting("7654321", "GWADAR", 1)
	c.NextPortCountry = "SG"

	resolve := func(code string) string {
		names := map[string]string{"AE": "United Arab Emirates", "SG": "Singapore"}
		if n, ok := names[code]; ok {
			return n
		}
		return code
	}

	results := New(trackedPorts).FlagCounts([]models.RawPosition{a, b, c}, dayParams(1, 1, DimAll), resolve)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Countries["United Arab Emirates"])
	assert.Equal(t, 1, results[0].Countries["Singapore"])
}

func TestLeaveEnterEmitsFilteredThenTotals(t *testing.T) {
	atPort := sighting("9434761", "KARACHI", 1)
	leftPort := sighting("1234567", "GWADAR", 1)
	leftPort.LastPort = "KARACHI"
	elsewhere := sighting("7654321", "JEBEL ALI", 1)

	positions := []models.RawPosition{atPort, leftPort, elsewhere}
	items := LeaveEnter(positions, date(2024, time.March, 1), date(2024, time.March, 1), "KARACHI")

	// each bucket yields the port-filtered entry followed by the
	// all-ports totals under the same label
	require.Len(t, items, 2)
	assert.Equal(t, items[0].Date, items[1].Date)
	assert.Equal(t, "01-March-2024", items[0].Date)

	assert.Equal(t, 1, items[0].Arrivals)
	assert.Equal(t, -1, items[0].Departures)

	assert.Equal(t, 3, items[1].Arrivals)
	assert.Equal(t, -1, items[1].Departures)
}

func TestLeaveEnterCountsDistinctIMOs(t *testing.T) {
	a := sighting("9434761", "KARACHI", 1)
	b := sighting("9434761", "KARACHI", 1) // same IMO twice

	items := LeaveEnter([]models.RawPosition{a, b}, date(2024, time.March, 1), date(2024, time.March, 1), "KARACHI")
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Arrivals)
}

func TestPortLeaveEnterLocationFilter(t *testing.T) {
	a := sighting("9434761", "KARACHI", 1)
	b := sighting("1234567", "GWADAR", 1)

	items := PortLeaveEnter([]models.RawPosition{a, b}, date(2024, time.March, 1), date(2024, time.March, 1), "KARACHI")
	require.Len(t, items, 1)

	// both ports appear (zero-filled universe) but only KARACHI rows count
	require.Contains(t, items[0].Ports, "KARACHI")
	require.Contains(t, items[0].Ports, "GWADAR")
	assert.Equal(t, 1, items[0].Ports["KARACHI"].Arrivals)
	assert.Equal(t, 0, items[0].Ports["GWADAR"].Arrivals)
}

func TestPortActivityZeroFill(t *testing.T) {
	positions := []models.RawPosition{
		sighting("9434761", "KARACHI", 1),
		sighting("1234567", "GWADAR", 2),
	}

	items := PortActivity(positions, date(2024, time.March, 1), date(2024, time.March, 2))
	require.Len(t, items, 2)

	assert.Equal(t, 1, items[0].Ports["KARACHI"])
	assert.Equal(t, 0, items[0].Ports["GWADAR"])
	assert.Equal(t, 1, items[1].Ports["GWADAR"])
	assert.Equal(t, 0, items[1].Ports["KARACHI"])
}
