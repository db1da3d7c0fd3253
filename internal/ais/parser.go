package ais

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seatrace/seatrace_core/internal/models"
)

// timestampLayouts are the formats seen in provider CSV exports
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParsePositionsCSV parses a headered AIS position export. Rows with
// malformed numeric fields are kept with the field zeroed (a warning is
// logged); a row without a parseable timestamp is kept with a nil
// timestamp so the trip builder can reject the run explicitly rather
// than the importer silently dropping it.
func ParsePositionsCSV(path string) ([]models.RawPosition, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parsePositionsFromReader(file)
}

func parsePositionsFromReader(reader io.Reader) ([]models.RawPosition, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	if _, ok := colMap["timestamp"]; !ok {
		return nil, fmt.Errorf("export is missing the timestamp column")
	}

	var positions []models.RawPosition

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed position row: %v", err)
			continue
		}

		p := models.RawPosition{
			MMSI:                getField(record, colMap, "mmsi"),
			IMO:                 getField(record, colMap, "imo"),
			ShipID:              getField(record, colMap, "ship_id"),
			Longitude:           getFloatPtr(record, colMap, "longitude"),
			Latitude:            getFloatPtr(record, colMap, "latitude"),
			Speed:               getFloat(record, colMap, "speed"),
			Heading:             getFloat(record, colMap, "heading"),
			Status:              getField(record, colMap, "status"),
			Course:              getFloat(record, colMap, "course"),
			Timestamp:           getTime(record, colMap, "timestamp"),
			DSRC:                getField(record, colMap, "dsrc"),
			UTCSeconds:          getFloat(record, colMap, "utc_seconds"),
			ShipName:            getField(record, colMap, "ship_name"),
			ShipType:            getField(record, colMap, "ship_type"),
			CallSign:            getField(record, colMap, "call_sign"),
			Flag:                getField(record, colMap, "flag"),
			Length:              getFloat(record, colMap, "length"),
			Width:               getFloat(record, colMap, "width"),
			GRT:                 getFloat(record, colMap, "grt"),
			DWT:                 getFloat(record, colMap, "dwt"),
			Draught:             getFloat(record, colMap, "draught"),
			YearBuilt:           getInt(record, colMap, "year_built"),
			ROT:                 getFloat(record, colMap, "rot"),
			TypeName:            getField(record, colMap, "type_name"),
			AISTypeSummary:      getField(record, colMap, "ais_type_summary"),
			Destination:         getField(record, colMap, "destination"),
			ETA:                 getTime(record, colMap, "eta"),
			CurrentPort:         getField(record, colMap, "current_port"),
			LastPort:            getField(record, colMap, "last_port"),
			LastPortTime:        getTime(record, colMap, "last_port_time"),
			CurrentPortID:       getField(record, colMap, "current_port_id"),
			CurrentPortUnlocode: getField(record, colMap, "current_port_unlocode"),
			CurrentPortCountry:  getField(record, colMap, "current_port_country"),
			LastPortID:          getField(record, colMap, "last_port_id"),
			LastPortUnlocode:    getField(record, colMap, "last_port_unlocode"),
			LastPortCountry:     getField(record, colMap, "last_port_country"),
			NextPortID:          getField(record, colMap, "next_port_id"),
			NextPortUnlocode:    getField(record, colMap, "next_port_unlocode"),
			NextPortName:        getField(record, colMap, "next_port_name"),
			NextPortCountry:     getField(record, colMap, "next_port_country"),
			ETACalc:             getTime(record, colMap, "eta_calc"),
			ETAUpdated:          getTime(record, colMap, "eta_updated"),
			DistanceToGo:        getFloat(record, colMap, "distance_to_go"),
			DistanceTravelled:   getFloat(record, colMap, "distance_travelled"),
			AvgSpeed:            getFloat(record, colMap, "awg_speed"),
			MaxSpeed:            getFloat(record, colMap, "max_speed"),
		}

		positions = append(positions, p)
	}

	return positions, nil
}

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func getFloat(record []string, colMap map[string]int, fieldName string) float64 {
	s := getField(record, colMap, fieldName)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, zeroing", fieldName, s)
		return 0
	}
	return f
}

func getFloatPtr(record []string, colMap map[string]int, fieldName string) *float64 {
	s := getField(record, colMap, fieldName)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, dropping", fieldName, s)
		return nil
	}
	return &f
}

func getInt(record []string, colMap map[string]int, fieldName string) int {
	s := getField(record, colMap, fieldName)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, zeroing", fieldName, s)
		return 0
	}
	return n
}

func getTime(record []string, colMap map[string]int, fieldName string) *time.Time {
	s := getField(record, colMap, fieldName)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	log.Printf("Warning: unparseable %s value %q, dropping", fieldName, s)
	return nil
}
