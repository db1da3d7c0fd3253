package models

import "time"

// TripStatus represents the lifecycle state of a merchant trip
type TripStatus string

const (
	TripOngoing   TripStatus = "Ongoing"
	TripCompleted TripStatus = "Completed"
)

// DataSource identifies how a vessel entered the registry
type DataSource string

const (
	SourceAIS        DataSource = "ais"
	SourceRegistered DataSource = "registered_merchant"
	SourceMisrep     DataSource = "misrep"
)

// RawPosition is one AIS sighting from the append-only fulldata table.
// IMO == "0" is a sentinel meaning the vessel carries no IMO number and
// MMSI is the true identity key.
type RawPosition struct {
	ID     int64
	MMSI   string // maritime mobile service identity (transmitter station)
	IMO    string // international maritime organisation number
	ShipID string // provider-assigned vessel id

	Longitude *float64
	Latitude  *float64
	Speed     float64
	Heading   float64 // vessel bow orientation
	Status    string  // navigational status reported by the crew (0-15)
	Course    float64
	Timestamp *time.Time // time the position was recorded by the provider
	DSRC      string     // terrestrial or satellite

	UTCSeconds float64

	ShipName       string
	ShipType       string
	CallSign       string
	Flag           string
	Length         float64 // meters
	Width          float64 // meters
	GRT            float64 // gross tonnage
	DWT            float64 // deadweight, metric tons
	Draught        float64
	YearBuilt      int
	ROT            float64 // rate of turn
	TypeName       string
	AISTypeSummary string

	Destination string
	ETA         *time.Time

	CurrentPort         string
	LastPort            string
	LastPortTime        *time.Time
	CurrentPortID       string
	CurrentPortUnlocode string
	CurrentPortCountry  string
	LastPortID          string
	LastPortUnlocode    string
	LastPortCountry     string
	NextPortID          string
	NextPortUnlocode    string
	NextPortName        string
	NextPortCountry     string

	ETACalc           *time.Time
	ETAUpdated        *time.Time
	DistanceToGo      float64
	DistanceTravelled float64
	AvgSpeed          float64
	MaxSpeed          float64
}

// Vessel is a registered merchant vessel, identified by (IMO, ShipID).
// The trip builder creates it once and never overwrites its fields.
type Vessel struct {
	Key            int64
	MMSI           string
	IMO            string
	ShipID         string
	ShipName       string
	ShipType       string
	CallSign       string
	Flag           string
	Length         float64
	Width          float64
	GRT            float64
	DWT            float64
	YearBuilt      int
	TypeName       string
	AISTypeSummary string
	DataSource     DataSource
	PFID           string
}

// Trip is one voyage segment inferred by the trip builder. It stays Ongoing
// until a position arrives whose destination AND eta both differ from the
// trip's own.
type Trip struct {
	Key              int64
	VesselKey        int64
	DSRC             string
	Destination      string
	ETA              *time.Time
	FirstObservedAt  time.Time
	LastObservedAt   *time.Time // nil while ongoing
	ObservedDuration *int       // whole days, nil while ongoing
	Status           TripStatus
}

// TripDetail is a denormalized snapshot of one raw position, linked to the
// trip that was ongoing for its vessel when it was processed. Immutable.
type TripDetail struct {
	Key       int64
	TripKey   int64
	Longitude *float64
	Latitude  *float64
	Speed     float64
	Heading   float64
	Status    string
	Course    float64
	Timestamp *time.Time

	UTCSeconds float64
	Draught    float64
	ROT        float64

	CurrentPort         string
	LastPort            string
	LastPortTime        *time.Time
	CurrentPortID       string
	CurrentPortUnlocode string
	CurrentPortCountry  string
	LastPortID          string
	LastPortUnlocode    string
	LastPortCountry     string
	NextPortID          string
	NextPortUnlocode    string
	NextPortName        string
	NextPortCountry     string

	ETACalc           *time.Time
	ETAUpdated        *time.Time
	DistanceToGo      float64
	DistanceTravelled float64
	AvgSpeed          float64
	MaxSpeed          float64
}

// NewTripDetail snapshots a raw position under the given trip.
func NewTripDetail(tripKey int64, p RawPosition) TripDetail {
	return TripDetail{
		TripKey:             tripKey,
		Longitude:           p.Longitude,
		Latitude:            p.Latitude,
		Speed:               p.Speed,
		Heading:             p.Heading,
		Status:              p.Status,
		Course:              p.Course,
		Timestamp:           p.Timestamp,
		UTCSeconds:          p.UTCSeconds,
		Draught:             p.Draught,
		ROT:                 p.ROT,
		CurrentPort:         p.CurrentPort,
		LastPort:            p.LastPort,
		LastPortTime:        p.LastPortTime,
		CurrentPortID:       p.CurrentPortID,
		CurrentPortUnlocode: p.CurrentPortUnlocode,
		CurrentPortCountry:  p.CurrentPortCountry,
		LastPortID:          p.LastPortID,
		LastPortUnlocode:    p.LastPortUnlocode,
		LastPortCountry:     p.LastPortCountry,
		NextPortID:          p.NextPortID,
		NextPortUnlocode:    p.NextPortUnlocode,
		NextPortName:        p.NextPortName,
		NextPortCountry:     p.NextPortCountry,
		ETACalc:             p.ETACalc,
		ETAUpdated:          p.ETAUpdated,
		DistanceToGo:        p.DistanceToGo,
		DistanceTravelled:   p.DistanceTravelled,
		AvgSpeed:            p.AvgSpeed,
		MaxSpeed:            p.MaxSpeed,
	}
}

// NewVesselFromPosition builds the vessel row created the first time an
// identity shows up in the raw stream.
func NewVesselFromPosition(p RawPosition) Vessel {
	return Vessel{
		MMSI:           p.MMSI,
		IMO:            p.IMO,
		ShipID:         p.ShipID,
		ShipName:       p.ShipName,
		ShipType:       p.ShipType,
		CallSign:       p.CallSign,
		Flag:           p.Flag,
		Length:         p.Length,
		Width:          p.Width,
		GRT:            p.GRT,
		DWT:            p.DWT,
		YearBuilt:      p.YearBuilt,
		TypeName:       p.TypeName,
		AISTypeSummary: p.AISTypeSummary,
		DataSource:     SourceAIS,
	}
}

// ImportLog records one importer run
type ImportLog struct {
	ID          int64
	Source      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	Message     string
}

// SpecialReport is a manually filed report about a merchant vessel
type SpecialReport struct {
	Key        int64         `json:"msr_key"`
	PFID       string        `json:"msr_pf_id"`
	DTG        *time.Time    `json:"msr_dtg"`
	Position   string        `json:"msr_position"`
	VesselKey  int64         `json:"msr_mv_key"`
	Movement   string        `json:"msr_movement"`
	Action     string        `json:"msr_action"`
	Info       string        `json:"msr_info"`
	RecordedAt time.Time     `json:"msr_rdt"`
	FuelRem    *int          `json:"msr_fuelrem"`
	FreshWater *int          `json:"msr_freshwater"`
	COI        bool          `json:"msr_coi"`
	Goods      []ReportGood  `json:"goodDetails"`
	Voyage     *ReportVoyage `json:"tripDetails"`
}

// ReportGood is one cargo line on a special report
type ReportGood struct {
	Key          int64   `json:"msrg_key,omitempty"`
	ReportKey    int64   `json:"-"`
	Item         string  `json:"msrg_item"`
	Qty          float64 `json:"msrg_qty"`
	Denomination string  `json:"msrg_denomination"`
	Category     string  `json:"msrg_category"`
	Subcategory  string  `json:"msrg_subcategory"`
	Value        float64 `json:"msrg_value"`
	Source       string  `json:"msrg_source"`
	Confiscated  bool    `json:"msrg_confiscated"`
	Remarks      string  `json:"msrg_remarks"`
}

// ReportVoyage holds the last/next port-of-call block of a special report
type ReportVoyage struct {
	ReportKey int64      `json:"-"`
	LPOC      string     `json:"msr2_lpoc"`
	LPOCDTG   *time.Time `json:"msr2_lpocdtg"`
	NPOC      string     `json:"msr2_npoc"`
	NPOCETA   *time.Time `json:"msr2_npoceta"`
}

// MissionReport is a patrol mission report with nested observations
type MissionReport struct {
	Key        int64            `json:"mr_key"`
	PFID       string           `json:"mr_pf_id"`
	DTG        *time.Time       `json:"mr_dtg"`
	RecordedAt time.Time        `json:"mr_rdt"`
	Details    []MissionDetail  `json:"misrepdetails"`
	Fishing    []MissionFishing `json:"misrepfishing"`
	Density    []MissionDensity `json:"misrepfdensity"`
}

// MissionDetail is one vessel observation inside a mission report
type MissionDetail struct {
	Key         int64      `json:"mrd_key,omitempty"`
	ReportKey   int64      `json:"-"`
	MMSI        string     `json:"mrd_mmsi"`
	VesselKey   *int64     `json:"mrd_mv_key"` // resolved from MMSI when a registered vessel matches
	VesselType  string     `json:"mrd_vessel_type"`
	VesselName  string     `json:"mrd_vessel_name"`
	Position    string     `json:"mrd_position"`
	Course      float64    `json:"mrd_course"`
	Speed       float64    `json:"mrd_speed"`
	NPOC        string     `json:"mrd_npoc"`
	LPOC        string     `json:"mrd_lpoc"`
	ActDesc     string     `json:"mrd_act_desc"`
	DTG         *time.Time `json:"mrd_dtg"`
	AISStatus   string     `json:"mrd_ais_status"`
	CallDetails string     `json:"mrd_call_details"`
	Response    string     `json:"mrd_response"`
	Remarks     string     `json:"mrd_remarks"`
}

// MissionFishing is a named fishing-vessel sighting
type MissionFishing struct {
	Key       int64  `json:"mrf_key,omitempty"`
	ReportKey int64  `json:"-"`
	Position  string `json:"mrf_position"`
	Name      string `json:"mrf_name"`
	Type      string `json:"mrf_type"`
	Movement  string `json:"mrf_movement"`
}

// MissionDensity is a fishing-density observation
type MissionDensity struct {
	Key       int64  `json:"mrfd_key,omitempty"`
	ReportKey int64  `json:"-"`
	Position  string `json:"mrfd_position"`
	Qty       int    `json:"mrfd_qty"`
	Type      string `json:"mrfd_type"`
	Movement  string `json:"mrfd_movement"`
}
