package ais

import (
	"os"
	"strings"

	"github.com/seatrace/seatrace_core/internal/models"
)

// imoUnassigned is the provider sentinel for vessels without an IMO number
const imoUnassigned = "0"

// IdentityKey resolves the identity key for a sighting: the IMO number,
// unless it is the "0" sentinel, in which case the MMSI stands in.
// Every consumer of the raw stream must resolve identity through this
// function so the trip builder, reconciler and aggregators agree.
func IdentityKey(imo, mmsi string) string {
	if imo == imoUnassigned {
		return mmsi
	}
	return imo
}

// PositionIdentity resolves the identity key of a raw position
func PositionIdentity(p models.RawPosition) string {
	return IdentityKey(p.IMO, p.MMSI)
}

// CanonicalPort folds anchorage variants of a port name into the port
// itself, so "KARACHI ANCH" and "KARACHI" aggregate to one bucket.
func CanonicalPort(port string) string {
	if strings.HasSuffix(port, " ANCH") {
		return strings.TrimSuffix(port, " ANCH")
	}
	return port
}

// defaultTrackedPorts is the allow-list of ports the reconciler and the
// occupancy counters report on
var defaultTrackedPorts = []string{"KARACHI", "PORT QASIM", "GWADAR"}

// TrackedPorts returns the port allow-list, overridable via the
// TRACKED_PORTS env var (comma-separated).
func TrackedPorts() []string {
	if v := os.Getenv("TRACKED_PORTS"); v != "" {
		var ports []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ports = append(ports, p)
			}
		}
		if len(ports) > 0 {
			return ports
		}
	}
	out := make([]string, len(defaultTrackedPorts))
	copy(out, defaultTrackedPorts)
	return out
}
