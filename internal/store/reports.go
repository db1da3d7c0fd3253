package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatrace/seatrace_core/internal/models"
)

// ReportStore persists special reports and mission reports with their
// nested observation rows.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a report store over the given pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// CreateSpecialReport inserts a report with its goods and voyage block in
// one transaction and fills in the generated keys.
func (s *ReportStore) CreateSpecialReport(ctx context.Context, r *models.SpecialReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO special_report (
			msr_pf_id, msr_dtg, msr_position, msr_mv_key, msr_movement,
			msr_action, msr_info, msr_rdt, msr_fuelrem, msr_freshwater, msr_coi
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8, $9, $10)
		 RETURNING msr_key, msr_rdt`,
		r.PFID, r.DTG, r.Position, r.VesselKey, r.Movement,
		r.Action, r.Info, r.FuelRem, r.FreshWater, r.COI,
	).Scan(&r.Key, &r.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert special report: %w", err)
	}

	if err := s.insertReportChildren(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *ReportStore) insertReportChildren(ctx context.Context, tx pgx.Tx, r *models.SpecialReport) error {
	for i := range r.Goods {
		g := &r.Goods[i]
		g.ReportKey = r.Key
		err := tx.QueryRow(ctx,
			`INSERT INTO special_report_good (
				msrg_msr_key, msrg_item, msrg_qty, msrg_denomination, msrg_category,
				msrg_subcategory, msrg_value, msrg_source, msrg_confiscated, msrg_remarks
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING msrg_key`,
			g.ReportKey, g.Item, g.Qty, g.Denomination, g.Category,
			g.Subcategory, g.Value, g.Source, g.Confiscated, g.Remarks,
		).Scan(&g.Key)
		if err != nil {
			return fmt.Errorf("insert report good: %w", err)
		}
	}

	if r.Voyage != nil {
		r.Voyage.ReportKey = r.Key
		_, err := tx.Exec(ctx,
			`INSERT INTO special_report_voyage (
				msr2_msr_key, msr2_lpoc, msr2_lpocdtg, msr2_npoc, msr2_npoceta
			 ) VALUES ($1, $2, $3, $4, $5)`,
			r.Voyage.ReportKey, r.Voyage.LPOC, r.Voyage.LPOCDTG, r.Voyage.NPOC, r.Voyage.NPOCETA,
		)
		if err != nil {
			return fmt.Errorf("insert report voyage: %w", err)
		}
	}
	return nil
}

// UpdateSpecialReport rewrites a report's own fields and replaces its
// nested rows. The caller receives the stored state back; keys of replaced
// children change.
func (s *ReportStore) UpdateSpecialReport(ctx context.Context, r *models.SpecialReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE special_report SET
			msr_pf_id = $2, msr_dtg = $3, msr_position = $4, msr_mv_key = $5,
			msr_movement = $6, msr_action = $7, msr_info = $8,
			msr_fuelrem = $9, msr_freshwater = $10, msr_coi = $11
		 WHERE msr_key = $1`,
		r.Key, r.PFID, r.DTG, r.Position, r.VesselKey,
		r.Movement, r.Action, r.Info,
		r.FuelRem, r.FreshWater, r.COI,
	)
	if err != nil {
		return fmt.Errorf("update special report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM special_report_good WHERE msrg_msr_key = $1`, r.Key); err != nil {
		return fmt.Errorf("clear report goods: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM special_report_voyage WHERE msr2_msr_key = $1`, r.Key); err != nil {
		return fmt.Errorf("clear report voyage: %w", err)
	}
	if err := s.insertReportChildren(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteSpecialReport removes a report and its nested rows.
func (s *ReportStore) DeleteSpecialReport(ctx context.Context, key int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM special_report_good WHERE msrg_msr_key = $1`, key); err != nil {
		return fmt.Errorf("delete report goods: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM special_report_voyage WHERE msr2_msr_key = $1`, key); err != nil {
		return fmt.Errorf("delete report voyage: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM special_report WHERE msr_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete special report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSpecialReport fetches one report with its nested rows.
func (s *ReportStore) GetSpecialReport(ctx context.Context, key int64) (models.SpecialReport, error) {
	reports, err := s.loadSpecialReports(ctx, `WHERE msr_key = $1`, key)
	if err != nil {
		return models.SpecialReport{}, err
	}
	if len(reports) == 0 {
		return models.SpecialReport{}, ErrNotFound
	}
	return reports[0], nil
}

// ListSpecialReports returns all reports, newest first.
func (s *ReportStore) ListSpecialReports(ctx context.Context) ([]models.SpecialReport, error) {
	return s.loadSpecialReports(ctx, `ORDER BY msr_rdt DESC, msr_key DESC`)
}

// SpecialReportsForVessel returns the reports filed against one vessel,
// newest first.
func (s *ReportStore) SpecialReportsForVessel(ctx context.Context, vesselKey int64) ([]models.SpecialReport, error) {
	return s.loadSpecialReports(ctx, `WHERE msr_mv_key = $1 ORDER BY msr_rdt DESC, msr_key DESC`, vesselKey)
}

func (s *ReportStore) loadSpecialReports(ctx context.Context, tail string, args ...interface{}) ([]models.SpecialReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT msr_key, msr_pf_id, msr_dtg, msr_position, msr_mv_key, msr_movement,
		        msr_action, msr_info, msr_rdt, msr_fuelrem, msr_freshwater, msr_coi
		 FROM special_report `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query special reports: %w", err)
	}
	defer rows.Close()

	var reports []models.SpecialReport
	for rows.Next() {
		var r models.SpecialReport
		err := rows.Scan(
			&r.Key, &r.PFID, &r.DTG, &r.Position, &r.VesselKey, &r.Movement,
			&r.Action, &r.Info, &r.RecordedAt, &r.FuelRem, &r.FreshWater, &r.COI,
		)
		if err != nil {
			return nil, fmt.Errorf("scan special report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reports {
		if err := s.loadReportChildren(ctx, &reports[i]); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *ReportStore) loadReportChildren(ctx context.Context, r *models.SpecialReport) error {
	rows, err := s.pool.Query(ctx,
		`SELECT msrg_key, msrg_msr_key, msrg_item, msrg_qty, msrg_denomination, msrg_category,
		        msrg_subcategory, msrg_value, msrg_source, msrg_confiscated, msrg_remarks
		 FROM special_report_good WHERE msrg_msr_key = $1 ORDER BY msrg_key`, r.Key)
	if err != nil {
		return fmt.Errorf("query report goods: %w", err)
	}
	defer rows.Close()

	r.Goods = []models.ReportGood{}
	for rows.Next() {
		var g models.ReportGood
		err := rows.Scan(
			&g.Key, &g.ReportKey, &g.Item, &g.Qty, &g.Denomination, &g.Category,
			&g.Subcategory, &g.Value, &g.Source, &g.Confiscated, &g.Remarks,
		)
		if err != nil {
			return fmt.Errorf("scan report good: %w", err)
		}
		r.Goods = append(r.Goods, g)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var v models.ReportVoyage
	err = s.pool.QueryRow(ctx,
		`SELECT msr2_msr_key, msr2_lpoc, msr2_lpocdtg, msr2_npoc, msr2_npoceta
		 FROM special_report_voyage WHERE msr2_msr_key = $1`, r.Key,
	).Scan(&v.ReportKey, &v.LPOC, &v.LPOCDTG, &v.NPOC, &v.NPOCETA)
	if errors.Is(err, pgx.ErrNoRows) {
		r.Voyage = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("query report voyage: %w", err)
	}
	r.Voyage = &v
	return nil
}

// CreateMissionReport inserts a mission report with its detail, fishing
// and density rows in one transaction.
func (s *ReportStore) CreateMissionReport(ctx context.Context, r *models.MissionReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO mission_report (mr_pf_id, mr_dtg, mr_rdt)
		 VALUES ($1, $2, NOW()) RETURNING mr_key, mr_rdt`,
		r.PFID, r.DTG,
	).Scan(&r.Key, &r.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert mission report: %w", err)
	}

	if err := s.insertMissionChildren(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *ReportStore) insertMissionChildren(ctx context.Context, tx pgx.Tx, r *models.MissionReport) error {
	for i := range r.Details {
		d := &r.Details[i]
		d.ReportKey = r.Key
		err := tx.QueryRow(ctx,
			`INSERT INTO mission_report_detail (
				mrd_mr_key, mrd_mmsi, mrd_mv_key, mrd_vessel_type, mrd_vessel_name,
				mrd_position, mrd_course, mrd_speed, mrd_npoc, mrd_lpoc,
				mrd_act_desc, mrd_dtg, mrd_ais_status, mrd_call_details, mrd_response, mrd_remarks
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 RETURNING mrd_key`,
			d.ReportKey, d.MMSI, d.VesselKey, d.VesselType, d.VesselName,
			d.Position, d.Course, d.Speed, d.NPOC, d.LPOC,
			d.ActDesc, d.DTG, d.AISStatus, d.CallDetails, d.Response, d.Remarks,
		).Scan(&d.Key)
		if err != nil {
			return fmt.Errorf("insert mission detail: %w", err)
		}
	}

	for i := range r.Fishing {
		f := &r.Fishing[i]
		f.ReportKey = r.Key
		err := tx.QueryRow(ctx,
			`INSERT INTO mission_report_fishing (mrf_mr_key, mrf_position, mrf_name, mrf_type, mrf_movement)
			 VALUES ($1, $2, $3, $4, $5) RETURNING mrf_key`,
			f.ReportKey, f.Position, f.Name, f.Type, f.Movement,
		).Scan(&f.Key)
		if err != nil {
			return fmt.Errorf("insert mission fishing: %w", err)
		}
	}

	for i := range r.Density {
		d := &r.Density[i]
		d.ReportKey = r.Key
		err := tx.QueryRow(ctx,
			`INSERT INTO mission_report_density (mrfd_mr_key, mrfd_position, mrfd_qty, mrfd_type, mrfd_movement)
			 VALUES ($1, $2, $3, $4, $5) RETURNING mrfd_key`,
			d.ReportKey, d.Position, d.Qty, d.Type, d.Movement,
		).Scan(&d.Key)
		if err != nil {
			return fmt.Errorf("insert mission density: %w", err)
		}
	}
	return nil
}

// UpdateMissionReport rewrites a mission report and replaces its nested rows.
func (s *ReportStore) UpdateMissionReport(ctx context.Context, r *models.MissionReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE mission_report SET mr_pf_id = $2, mr_dtg = $3 WHERE mr_key = $1`,
		r.Key, r.PFID, r.DTG,
	)
	if err != nil {
		return fmt.Errorf("update mission report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, q := range []string{
		`DELETE FROM mission_report_detail WHERE mrd_mr_key = $1`,
		`DELETE FROM mission_report_fishing WHERE mrf_mr_key = $1`,
		`DELETE FROM mission_report_density WHERE mrfd_mr_key = $1`,
	} {
		if _, err := tx.Exec(ctx, q, r.Key); err != nil {
			return fmt.Errorf("clear mission children: %w", err)
		}
	}
	if err := s.insertMissionChildren(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteMissionReport removes a mission report and its nested rows.
func (s *ReportStore) DeleteMissionReport(ctx context.Context, key int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM mission_report_detail WHERE mrd_mr_key = $1`,
		`DELETE FROM mission_report_fishing WHERE mrf_mr_key = $1`,
		`DELETE FROM mission_report_density WHERE mrfd_mr_key = $1`,
	} {
		if _, err := tx.Exec(ctx, q, key); err != nil {
			return fmt.Errorf("delete mission children: %w", err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM mission_report WHERE mr_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete mission report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetMissionReport fetches one mission report with its nested rows.
func (s *ReportStore) GetMissionReport(ctx context.Context, key int64) (models.MissionReport, error) {
	reports, err := s.loadMissionReports(ctx, `WHERE mr_key = $1`, key)
	if err != nil {
		return models.MissionReport{}, err
	}
	if len(reports) == 0 {
		return models.MissionReport{}, ErrNotFound
	}
	return reports[0], nil
}

// ListMissionReports returns all mission reports, newest first.
func (s *ReportStore) ListMissionReports(ctx context.Context) ([]models.MissionReport, error) {
	return s.loadMissionReports(ctx, `ORDER BY mr_rdt DESC, mr_key DESC`)
}

func (s *ReportStore) loadMissionReports(ctx context.Context, tail string, args ...interface{}) ([]models.MissionReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT mr_key, mr_pf_id, mr_dtg, mr_rdt FROM mission_report `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query mission reports: %w", err)
	}
	defer rows.Close()

	var reports []models.MissionReport
	for rows.Next() {
		var r models.MissionReport
		if err := rows.Scan(&r.Key, &r.PFID, &r.DTG, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan mission report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reports {
		if err := s.loadMissionChildren(ctx, &reports[i]); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *ReportStore) loadMissionChildren(ctx context.Context, r *models.MissionReport) error {
	rows, err := s.pool.Query(ctx,
		`SELECT mrd_key, mrd_mr_key, mrd_mmsi, mrd_mv_key, mrd_vessel_type, mrd_vessel_name,
		        mrd_position, mrd_course, mrd_speed, mrd_npoc, mrd_lpoc,
		        mrd_act_desc, mrd_dtg, mrd_ais_status, mrd_call_details, mrd_response, mrd_remarks
		 FROM mission_report_detail WHERE mrd_mr_key = $1 ORDER BY mrd_key`, r.Key)
	if err != nil {
		return fmt.Errorf("query mission details: %w", err)
	}
	defer rows.Close()

	r.Details = []models.MissionDetail{}
	for rows.Next() {
		var d models.MissionDetail
		err := rows.Scan(
			&d.Key, &d.ReportKey, &d.MMSI, &d.VesselKey, &d.VesselType, &d.VesselName,
			&d.Position, &d.Course, &d.Speed, &d.NPOC, &d.LPOC,
			&d.ActDesc, &d.DTG, &d.AISStatus, &d.CallDetails, &d.Response, &d.Remarks,
		)
		if err != nil {
			return fmt.Errorf("scan mission detail: %w", err)
		}
		r.Details = append(r.Details, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fRows, err := s.pool.Query(ctx,
		`SELECT mrf_key, mrf_mr_key, mrf_position, mrf_name, mrf_type, mrf_movement
		 FROM mission_report_fishing WHERE mrf_mr_key = $1 ORDER BY mrf_key`, r.Key)
	if err != nil {
		return fmt.Errorf("query mission fishing: %w", err)
	}
	defer fRows.Close()

	r.Fishing = []models.MissionFishing{}
	for fRows.Next() {
		var f models.MissionFishing
		if err := fRows.Scan(&f.Key, &f.ReportKey, &f.Position, &f.Name, &f.Type, &f.Movement); err != nil {
			return fmt.Errorf("scan mission fishing: %w", err)
		}
		r.Fishing = append(r.Fishing, f)
	}
	if err := fRows.Err(); err != nil {
		return err
	}

	dRows, err := s.pool.Query(ctx,
		`SELECT mrfd_key, mrfd_mr_key, mrfd_position, mrfd_qty, mrfd_type, mrfd_movement
		 FROM mission_report_density WHERE mrfd_mr_key = $1 ORDER BY mrfd_key`, r.Key)
	if err != nil {
		return fmt.Errorf("query mission density: %w", err)
	}
	defer dRows.Close()

	r.Density = []models.MissionDensity{}
	for dRows.Next() {
		var d models.MissionDensity
		if err := dRows.Scan(&d.Key, &d.ReportKey, &d.Position, &d.Qty, &d.Type, &d.Movement); err != nil {
			return fmt.Errorf("scan mission density: %w", err)
		}
		r.Density = append(r.Density, d)
	}
	return dRows.Err()
}
