package ais

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionsFromReader(t *testing.T) {
	csv := strings.Join([]string{
		"MMSI,IMO,SHIP_ID,TIMESTAMP,SPEED,LATITUDE,LONGITUDE,DESTINATION,CURRENT_PORT",
		"463113000,9434761,371681,2024-03-01 08:30:00,12.4,24.81,66.97,JEBEL ALI,KARACHI",
		"463113000,9434761,371681,2024-03-01 09:30:00,not-a-number,,66.97,JEBEL ALI,KARACHI ANCH",
	}, "\n")

	positions, err := parsePositionsFromReader(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	first := positions[0]
	assert.Equal(t, "463113000", first.MMSI)
	assert.Equal(t, "9434761", first.IMO)
	assert.Equal(t, "371681", first.ShipID)
	assert.Equal(t, 12.4, first.Speed)
	assert.Equal(t, "JEBEL ALI", first.Destination)
	assert.Equal(t, "KARACHI", first.CurrentPort)
	require.NotNil(t, first.Timestamp)
	assert.Equal(t, "2024-03-01 08:30:00", first.Timestamp.Format("2006-01-02 15:04:05"))
	require.NotNil(t, first.Latitude)
	assert.Equal(t, 24.81, *first.Latitude)

	// malformed speed zeroed, empty latitude dropped, row kept
	second := positions[1]
	assert.Equal(t, 0.0, second.Speed)
	assert.Nil(t, second.Latitude)
	require.NotNil(t, second.Longitude)
}

func TestParsePositionsMissingTimestampColumn(t *testing.T) {
	csv := "MMSI,IMO,SPEED\n463113000,9434761,12.4\n"

	_, err := parsePositionsFromReader(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestParsePositionsUnparseableTimestampKeptNil(t *testing.T) {
	csv := strings.Join([]string{
		"MMSI,IMO,TIMESTAMP",
		"463113000,9434761,yesterday-ish",
	}, "\n")

	positions, err := parsePositionsFromReader(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	// the trip builder rejects the run on a nil timestamp; the parser
	// must not silently drop the row
	assert.Nil(t, positions[0].Timestamp)
}

func TestParsePositionsHeaderCaseInsensitive(t *testing.T) {
	csv := strings.Join([]string{
		"mmsi, Imo ,timestamp",
		"463113000,9434761,2024-03-01T10:00:00",
	}, "\n")

	positions, err := parsePositionsFromReader(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "9434761", positions[0].IMO)
	require.NotNil(t, positions[0].Timestamp)
}
