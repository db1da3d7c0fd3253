package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatrace/seatrace_core/internal/models"
	"github.com/seatrace/seatrace_core/internal/trips"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// TripStore persists merchant vessels, trips and trip details.
type TripStore struct {
	pool *pgxpool.Pool
}

// NewTripStore creates a trip store over the given pool.
func NewTripStore(pool *pgxpool.Pool) *TripStore {
	return &TripStore{pool: pool}
}

// RunBuild executes fn against a transactional trips.Store. A returned
// error rolls back every vessel, trip and detail written during the run.
func (s *TripStore) RunBuild(ctx context.Context, fn func(trips.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin build transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit build transaction: %w", err)
	}
	return nil
}

// txStore implements trips.Store inside one transaction.
type txStore struct {
	tx pgx.Tx
}

func (s *txStore) GetOrCreateVessel(ctx context.Context, v models.Vessel) (models.Vessel, bool, error) {
	err := s.tx.QueryRow(ctx,
		`SELECT mv_key, mv_mmsi, mv_imo, mv_ship_id, mv_shipname, mv_shiptype,
		        mv_callsign, mv_flag, mv_length, mv_width, mv_grt, mv_dwt,
		        mv_year_built, mv_type_name, mv_ais_type_summary, mv_data_source, mv_pf_id
		 FROM merchant_vessel WHERE mv_imo = $1 AND mv_ship_id = $2`,
		v.IMO, v.ShipID,
	).Scan(
		&v.Key, &v.MMSI, &v.IMO, &v.ShipID, &v.ShipName, &v.ShipType,
		&v.CallSign, &v.Flag, &v.Length, &v.Width, &v.GRT, &v.DWT,
		&v.YearBuilt, &v.TypeName, &v.AISTypeSummary, &v.DataSource, &v.PFID,
	)
	if err == nil {
		return v, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Vessel{}, false, fmt.Errorf("lookup vessel: %w", err)
	}

	err = s.tx.QueryRow(ctx,
		`INSERT INTO merchant_vessel (
			mv_mmsi, mv_imo, mv_ship_id, mv_shipname, mv_shiptype,
			mv_callsign, mv_flag, mv_length, mv_width, mv_grt, mv_dwt,
			mv_year_built, mv_type_name, mv_ais_type_summary, mv_data_source, mv_pf_id
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING mv_key`,
		v.MMSI, v.IMO, v.ShipID, v.ShipName, v.ShipType,
		v.CallSign, v.Flag, v.Length, v.Width, v.GRT, v.DWT,
		v.YearBuilt, v.TypeName, v.AISTypeSummary, v.DataSource, v.PFID,
	).Scan(&v.Key)
	if err != nil {
		return models.Vessel{}, false, fmt.Errorf("insert vessel: %w", err)
	}
	return v, true, nil
}

func (s *txStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	err := s.tx.QueryRow(ctx,
		`INSERT INTO merchant_trip (
			mt_mv_key, mt_dsrc, mt_destination, mt_eta,
			mt_first_observed, mt_status
		 ) VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING mt_key`,
		t.VesselKey, t.DSRC, t.Destination, t.ETA,
		t.FirstObservedAt, t.Status,
	).Scan(&t.Key)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

func (s *txStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE merchant_trip
		 SET mt_last_observed = $2, mt_duration = $3, mt_status = $4
		 WHERE mt_key = $1`,
		t.Key, t.LastObservedAt, t.ObservedDuration, t.Status,
	)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	return nil
}

func (s *txStore) CreateTripDetail(ctx context.Context, d *models.TripDetail) error {
	err := s.tx.QueryRow(ctx,
		`INSERT INTO trip_details (
			td_mt_key, td_longitude, td_latitude, td_speed, td_heading,
			td_status, td_course, td_timestamp, td_utc_seconds, td_draught, td_rot,
			td_current_port, td_last_port, td_last_port_time,
			td_current_port_id, td_current_port_unlocode, td_current_port_country,
			td_last_port_id, td_last_port_unlocode, td_last_port_country,
			td_next_port_id, td_next_port_unlocode, td_next_port_name, td_next_port_country,
			td_eta_calc, td_eta_updated, td_distance_to_go, td_distance_travelled,
			td_average_speed, td_max_speed
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30)
		 RETURNING td_key`,
		d.TripKey, d.Longitude, d.Latitude, d.Speed, d.Heading,
		d.Status, d.Course, d.Timestamp, d.UTCSeconds, d.Draught, d.ROT,
		d.CurrentPort, d.LastPort, d.LastPortTime,
		d.CurrentPortID, d.CurrentPortUnlocode, d.CurrentPortCountry,
		d.LastPortID, d.LastPortUnlocode, d.LastPortCountry,
		d.NextPortID, d.NextPortUnlocode, d.NextPortName, d.NextPortCountry,
		d.ETACalc, d.ETAUpdated, d.DistanceToGo, d.DistanceTravelled,
		d.AvgSpeed, d.MaxSpeed,
	).Scan(&d.Key)
	if err != nil {
		return fmt.Errorf("insert trip detail: %w", err)
	}
	return nil
}

// TripCountsPerVessel returns the number of trips every registered vessel
// made inside the window, zero included; the histogram's trip_count=0 row
// depends on tripless vessels being present. Nil bounds leave that side
// open. Vessel identity is not returned; the histogram only needs the
// counts.
func (s *TripStore) TripCountsPerVessel(ctx context.Context, from, to *time.Time) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COUNT(mt_key) FILTER (
			WHERE ($1::timestamptz IS NULL OR mt_first_observed >= $1)
			  AND ($2::timestamptz IS NULL OR mt_first_observed <= $2))
		 FROM merchant_vessel
		 LEFT JOIN merchant_trip ON mt_mv_key = mv_key
		 GROUP BY mv_key`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("query trip counts: %w", err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan trip count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

const vesselColumns = `
	mv_key, mv_mmsi, mv_imo, mv_ship_id, mv_shipname, mv_shiptype,
	mv_callsign, mv_flag, mv_length, mv_width, mv_grt, mv_dwt,
	mv_year_built, mv_type_name, mv_ais_type_summary, mv_data_source, mv_pf_id`

func scanVessel(rows pgx.Row) (models.Vessel, error) {
	var v models.Vessel
	err := rows.Scan(
		&v.Key, &v.MMSI, &v.IMO, &v.ShipID, &v.ShipName, &v.ShipType,
		&v.CallSign, &v.Flag, &v.Length, &v.Width, &v.GRT, &v.DWT,
		&v.YearBuilt, &v.TypeName, &v.AISTypeSummary, &v.DataSource, &v.PFID,
	)
	return v, err
}

// Vessels lists every registered merchant vessel.
func (s *TripStore) Vessels(ctx context.Context) ([]models.Vessel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+vesselColumns+` FROM merchant_vessel ORDER BY mv_key`)
	if err != nil {
		return nil, fmt.Errorf("query vessels: %w", err)
	}
	defer rows.Close()

	var vessels []models.Vessel
	for rows.Next() {
		v, err := scanVessel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vessel: %w", err)
		}
		vessels = append(vessels, v)
	}
	return vessels, rows.Err()
}

// VesselByKey fetches one vessel.
func (s *TripStore) VesselByKey(ctx context.Context, key int64) (models.Vessel, error) {
	v, err := scanVessel(s.pool.QueryRow(ctx,
		`SELECT `+vesselColumns+` FROM merchant_vessel WHERE mv_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Vessel{}, ErrNotFound
	}
	if err != nil {
		return models.Vessel{}, fmt.Errorf("query vessel %d: %w", key, err)
	}
	return v, nil
}

// VesselKeyByMMSI resolves a registered vessel from a reported MMSI.
// Returns nil when no vessel matches.
func (s *TripStore) VesselKeyByMMSI(ctx context.Context, mmsi string) (*int64, error) {
	var key int64
	err := s.pool.QueryRow(ctx,
		`SELECT mv_key FROM merchant_vessel WHERE mv_mmsi = $1 ORDER BY mv_key LIMIT 1`,
		mmsi,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve vessel by mmsi: %w", err)
	}
	return &key, nil
}

// VesselTripCount pairs a vessel with the number of trips it made.
type VesselTripCount struct {
	Vessel    models.Vessel
	TripCount int
}

// VesselTripCounts lists every vessel with the number of trips it opened
// inside the window, vessels without matching trips included at zero. Nil
// bounds leave that side open.
func (s *TripStore) VesselTripCounts(ctx context.Context, from, to *time.Time) ([]VesselTripCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+vesselColumns+`, COUNT(mt_key) FILTER (
			WHERE ($1::timestamptz IS NULL OR mt_first_observed >= $1)
			  AND ($2::timestamptz IS NULL OR mt_first_observed <= $2))
		 FROM merchant_vessel
		 LEFT JOIN merchant_trip ON mt_mv_key = mv_key
		 GROUP BY mv_key
		 ORDER BY mv_key`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("query vessel trip counts: %w", err)
	}
	defer rows.Close()

	var items []VesselTripCount
	for rows.Next() {
		var item VesselTripCount
		v := &item.Vessel
		err := rows.Scan(
			&v.Key, &v.MMSI, &v.IMO, &v.ShipID, &v.ShipName, &v.ShipType,
			&v.CallSign, &v.Flag, &v.Length, &v.Width, &v.GRT, &v.DWT,
			&v.YearBuilt, &v.TypeName, &v.AISTypeSummary, &v.DataSource, &v.PFID,
			&item.TripCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vessel trip count: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// VesselExistsByIMO reports whether a vessel with the given IMO number is
// already registered.
func (s *TripStore) VesselExistsByIMO(ctx context.Context, imo string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM merchant_vessel WHERE mv_imo = $1)`, imo,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vessel imo: %w", err)
	}
	return exists, nil
}

// CreateVessel registers a vessel directly (manual registration path) and
// fills in its key.
func (s *TripStore) CreateVessel(ctx context.Context, v *models.Vessel) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO merchant_vessel (
			mv_mmsi, mv_imo, mv_ship_id, mv_shipname, mv_shiptype,
			mv_callsign, mv_flag, mv_length, mv_width, mv_grt, mv_dwt,
			mv_year_built, mv_type_name, mv_ais_type_summary, mv_data_source, mv_pf_id
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING mv_key`,
		v.MMSI, v.IMO, v.ShipID, v.ShipName, v.ShipType,
		v.CallSign, v.Flag, v.Length, v.Width, v.GRT, v.DWT,
		v.YearBuilt, v.TypeName, v.AISTypeSummary, v.DataSource, v.PFID,
	).Scan(&v.Key)
	if err != nil {
		return fmt.Errorf("insert vessel: %w", err)
	}
	return nil
}

// TripsForVessel lists a vessel's trips, oldest first.
func (s *TripStore) TripsForVessel(ctx context.Context, vesselKey int64) ([]models.Trip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT mt_key, mt_mv_key, mt_dsrc, mt_destination, mt_eta,
		        mt_first_observed, mt_last_observed, mt_duration, mt_status
		 FROM merchant_trip WHERE mt_mv_key = $1 ORDER BY mt_first_observed, mt_key`,
		vesselKey)
	if err != nil {
		return nil, fmt.Errorf("query trips for vessel %d: %w", vesselKey, err)
	}
	defer rows.Close()

	var list []models.Trip
	for rows.Next() {
		var t models.Trip
		err := rows.Scan(
			&t.Key, &t.VesselKey, &t.DSRC, &t.Destination, &t.ETA,
			&t.FirstObservedAt, &t.LastObservedAt, &t.ObservedDuration, &t.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
