package ais

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seatrace/seatrace_core/internal/models"
)

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name     string
		imo      string
		mmsi     string
		expected string
	}{
		{
			name:     "IMO wins when present",
			imo:      "9434761",
			mmsi:     "463113000",
			expected: "9434761",
		},
		{
			name:     "MMSI stands in for the zero sentinel",
			imo:      "0",
			mmsi:     "463113000",
			expected: "463113000",
		},
		{
			name:     "empty IMO is not the sentinel",
			imo:      "",
			mmsi:     "463113000",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IdentityKey(tt.imo, tt.mmsi))
		})
	}
}

func TestPositionIdentity(t *testing.T) {
	p := models.RawPosition{IMO: "0", MMSI: "463113000"}
	assert.Equal(t, "463113000", PositionIdentity(p))

	p.IMO = "9434761"
	assert.Equal(t, "9434761", PositionIdentity(p))
}

func TestCanonicalPort(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		expected string
	}{
		{name: "anchorage folds into the port", port: "KARACHI ANCH", expected: "KARACHI"},
		{name: "plain port unchanged", port: "KARACHI", expected: "KARACHI"},
		{name: "multi-word port", port: "PORT QASIM ANCH", expected: "PORT QASIM"},
		{name: "ANCH inside the name is kept", port: "ANCHORAGE", expected: "ANCHORAGE"},
		{name: "empty port", port: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalPort(tt.port))
		})
	}
}

func TestTrackedPorts(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, []string{"KARACHI", "PORT QASIM", "GWADAR"}, TrackedPorts())
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("TRACKED_PORTS", "ROTTERDAM, SINGAPORE")
		assert.Equal(t, []string{"ROTTERDAM", "SINGAPORE"}, TrackedPorts())
	})

	t.Run("blank override falls back to defaults", func(t *testing.T) {
		t.Setenv("TRACKED_PORTS", " , ")
		assert.Equal(t, []string{"KARACHI", "PORT QASIM", "GWADAR"}, TrackedPorts())
	})
}
