package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatrace/seatrace_core/internal/models"
)

// PositionStore reads and writes the append-only full_data table.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a position store over the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionColumns = `
	id, mmsi, imo, ship_id,
	longitude, latitude, speed, heading, status, course, timestamp, dsrc,
	utc_seconds,
	shipname, shiptype, callsign, flag, length, width, grt, dwt, draught,
	year_built, rot, type_name, ais_type_summary,
	destination, eta,
	current_port, last_port, last_port_time,
	current_port_id, current_port_unlocode, current_port_country,
	last_port_id, last_port_unlocode, last_port_country,
	next_port_id, next_port_unlocode, next_port_name, next_port_country,
	eta_calc, eta_updated, distance_to_go, distance_travelled,
	average_speed, max_speed`

func scanPosition(rows pgx.Rows) (models.RawPosition, error) {
	var p models.RawPosition
	err := rows.Scan(
		&p.ID, &p.MMSI, &p.IMO, &p.ShipID,
		&p.Longitude, &p.Latitude, &p.Speed, &p.Heading, &p.Status, &p.Course, &p.Timestamp, &p.DSRC,
		&p.UTCSeconds,
		&p.ShipName, &p.ShipType, &p.CallSign, &p.Flag, &p.Length, &p.Width, &p.GRT, &p.DWT, &p.Draught,
		&p.YearBuilt, &p.ROT, &p.TypeName, &p.AISTypeSummary,
		&p.Destination, &p.ETA,
		&p.CurrentPort, &p.LastPort, &p.LastPortTime,
		&p.CurrentPortID, &p.CurrentPortUnlocode, &p.CurrentPortCountry,
		&p.LastPortID, &p.LastPortUnlocode, &p.LastPortCountry,
		&p.NextPortID, &p.NextPortUnlocode, &p.NextPortName, &p.NextPortCountry,
		&p.ETACalc, &p.ETAUpdated, &p.DistanceToGo, &p.DistanceTravelled,
		&p.AvgSpeed, &p.MaxSpeed,
	)
	return p, err
}

// ForEachOrdered streams every position ordered by (identity key, timestamp,
// id). Positions of a vessel without an IMO number (imo = '0') sort under
// their MMSI. The sort happens server-side so the trip builder never holds
// the full table in memory.
func (s *PositionStore) ForEachOrdered(ctx context.Context, fn func(models.RawPosition) error) error {
	query := `SELECT ` + positionColumns + `
		FROM full_data
		ORDER BY CASE WHEN imo = '0' THEN mmsi ELSE imo END, timestamp, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return fmt.Errorf("scan position: %w", err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Range returns all positions with a timestamp inside [from, to], ordered
// by timestamp then id. The aggregation endpoints slice this further in
// memory.
func (s *PositionStore) Range(ctx context.Context, from, to time.Time) ([]models.RawPosition, error) {
	query := `SELECT ` + positionColumns + `
		FROM full_data
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp, id`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query position range: %w", err)
	}
	defer rows.Close()

	var positions []models.RawPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// All returns the entire position table ordered by timestamp then id.
func (s *PositionStore) All(ctx context.Context) ([]models.RawPosition, error) {
	query := `SELECT ` + positionColumns + `
		FROM full_data
		ORDER BY timestamp, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.RawPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// PositionsForShip returns every position of one ship, oldest first.
func (s *PositionStore) PositionsForShip(ctx context.Context, shipID string) ([]models.RawPosition, error) {
	query := `SELECT ` + positionColumns + `
		FROM full_data
		WHERE ship_id = $1
		ORDER BY timestamp, id`

	rows, err := s.pool.Query(ctx, query, shipID)
	if err != nil {
		return nil, fmt.Errorf("query ship positions: %w", err)
	}
	defer rows.Close()

	var positions []models.RawPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// LatestPerShip returns the most recent position of every ship.
func (s *PositionStore) LatestPerShip(ctx context.Context) ([]models.RawPosition, error) {
	query := `SELECT DISTINCT ON (ship_id) ` + positionColumns + `
		FROM full_data
		ORDER BY ship_id, id DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest positions: %w", err)
	}
	defer rows.Close()

	var positions []models.RawPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// InsertBatch appends a chunk of positions using a pipelined batch.
func (s *PositionStore) InsertBatch(ctx context.Context, positions []models.RawPosition) error {
	if len(positions) == 0 {
		return nil
	}

	insert := `INSERT INTO full_data (
		mmsi, imo, ship_id,
		longitude, latitude, speed, heading, status, course, timestamp, dsrc,
		utc_seconds,
		shipname, shiptype, callsign, flag, length, width, grt, dwt, draught,
		year_built, rot, type_name, ais_type_summary,
		destination, eta,
		current_port, last_port, last_port_time,
		current_port_id, current_port_unlocode, current_port_country,
		last_port_id, last_port_unlocode, last_port_country,
		next_port_id, next_port_unlocode, next_port_name, next_port_country,
		eta_calc, eta_updated, distance_to_go, distance_travelled,
		average_speed, max_speed
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		$29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41,
		$42, $43, $44, $45, $46
	)`

	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(insert,
			p.MMSI, p.IMO, p.ShipID,
			p.Longitude, p.Latitude, p.Speed, p.Heading, p.Status, p.Course, p.Timestamp, p.DSRC,
			p.UTCSeconds,
			p.ShipName, p.ShipType, p.CallSign, p.Flag, p.Length, p.Width, p.GRT, p.DWT, p.Draught,
			p.YearBuilt, p.ROT, p.TypeName, p.AISTypeSummary,
			p.Destination, p.ETA,
			p.CurrentPort, p.LastPort, p.LastPortTime,
			p.CurrentPortID, p.CurrentPortUnlocode, p.CurrentPortCountry,
			p.LastPortID, p.LastPortUnlocode, p.LastPortCountry,
			p.NextPortID, p.NextPortUnlocode, p.NextPortName, p.NextPortCountry,
			p.ETACalc, p.ETAUpdated, p.DistanceToGo, p.DistanceTravelled,
			p.AvgSpeed, p.MaxSpeed,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range positions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
	}
	return nil
}

// StartImportLog opens an import_log row for one importer run.
func (s *PositionStore) StartImportLog(ctx context.Context, source string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO import_log (source, started_at, status)
		 VALUES ($1, NOW(), 'running') RETURNING id`,
		source,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start import log: %w", err)
	}
	return id, nil
}

// FinishImportLog closes an import_log row with a final status and message.
func (s *PositionStore) FinishImportLog(ctx context.Context, id int64, status, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE import_log SET completed_at = NOW(), status = $2, message = $3 WHERE id = $1`,
		id, status, message,
	)
	if err != nil {
		return fmt.Errorf("finish import log: %w", err)
	}
	return nil
}
