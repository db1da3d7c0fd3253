package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/seatrace/seatrace_core/internal/db"
	"github.com/seatrace/seatrace_core/internal/models"
	"github.com/seatrace/seatrace_core/internal/store"
)

// tripResponse is the wire shape of one voyage segment
type tripResponse struct {
	Key              int64      `json:"mt_key"`
	VesselKey        int64      `json:"mt_mv_key"`
	DSRC             string     `json:"mt_dsrc"`
	Destination      string     `json:"mt_destination"`
	ETA              *time.Time `json:"mt_eta"`
	FirstObservedAt  time.Time  `json:"mt_first_observed"`
	LastObservedAt   *time.Time `json:"mt_last_observed"`
	ObservedDuration *int       `json:"mt_duration"`
	Status           string     `json:"mt_status"`
}

func newTripResponse(t models.Trip) tripResponse {
	return tripResponse{
		Key:              t.Key,
		VesselKey:        t.VesselKey,
		DSRC:             t.DSRC,
		Destination:      t.Destination,
		ETA:              t.ETA,
		FirstObservedAt:  t.FirstObservedAt,
		LastObservedAt:   t.LastObservedAt,
		ObservedDuration: t.ObservedDuration,
		Status:           string(t.Status),
	}
}

// MerchantVesselView handles GET /ais/merchant_vessel_view/:mv_key: one
// vessel bundled with its trips and the special reports filed against it.
func MerchantVesselView(c *fiber.Ctx) error {
	key, err := c.ParamsInt("mv_key")
	if err != nil {
		return badRequest(c, errors.New("mv_key must be an integer"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	tripStore := store.NewTripStore(pool)
	reportStore := store.NewReportStore(pool)
	ctx := c.Context()

	vessel, err := tripStore.VesselByKey(ctx, int64(key))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "vessel not found"})
	}
	if err != nil {
		return internalError(c, err)
	}

	vesselTrips, err := tripStore.TripsForVessel(ctx, vessel.Key)
	if err != nil {
		return internalError(c, err)
	}
	reports, err := reportStore.SpecialReportsForVessel(ctx, vessel.Key)
	if err != nil {
		return internalError(c, err)
	}

	tripItems := make([]tripResponse, 0, len(vesselTrips))
	for _, t := range vesselTrips {
		tripItems = append(tripItems, newTripResponse(t))
	}

	return c.JSON(fiber.Map{
		"vessel":  newVesselResponse(vessel),
		"trips":   tripItems,
		"reports": reports,
	})
}

// AISVesselList handles GET /ais/aisvessel: every registered vessel.
func AISVesselList(c *fiber.Ctx) error {
	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}

	vessels, err := store.NewTripStore(pool).Vessels(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	response := make([]vesselResponse, 0, len(vessels))
	for _, v := range vessels {
		response = append(response, newVesselResponse(v))
	}
	return c.JSON(response)
}

// vesselRequest is the manual registration payload
type vesselRequest struct {
	MMSI           string  `json:"mv_mmsi"`
	IMO            string  `json:"mv_imo"`
	ShipID         string  `json:"mv_ship_id"`
	ShipName       string  `json:"mv_shipname"`
	ShipType       string  `json:"mv_shiptype"`
	CallSign       string  `json:"mv_callsign"`
	Flag           string  `json:"mv_flag"`
	Length         float64 `json:"mv_length"`
	Width          float64 `json:"mv_width"`
	GRT            float64 `json:"mv_grt"`
	DWT            float64 `json:"mv_dwt"`
	YearBuilt      int     `json:"mv_year_built"`
	TypeName       string  `json:"mv_type_name"`
	AISTypeSummary string  `json:"mv_ais_type_summary"`
	PFID           string  `json:"mv_pf_id"`
}

// AISVesselCreate handles POST /ais/aisvessel: manual vessel registration.
// A vessel with the same IMO number already on file is a conflict.
func AISVesselCreate(c *fiber.Ctx) error {
	var req vesselRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if req.IMO == "" {
		return badRequest(c, errors.New("mv_imo is required"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	tripStore := store.NewTripStore(pool)
	ctx := c.Context()

	exists, err := tripStore.VesselExistsByIMO(ctx, req.IMO)
	if err != nil {
		return internalError(c, err)
	}
	if exists {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a vessel with this IMO number is already registered",
		})
	}

	vessel := models.Vessel{
		MMSI:           req.MMSI,
		IMO:            req.IMO,
		ShipID:         req.ShipID,
		ShipName:       req.ShipName,
		ShipType:       req.ShipType,
		CallSign:       req.CallSign,
		Flag:           req.Flag,
		Length:         req.Length,
		Width:          req.Width,
		GRT:            req.GRT,
		DWT:            req.DWT,
		YearBuilt:      req.YearBuilt,
		TypeName:       req.TypeName,
		AISTypeSummary: req.AISTypeSummary,
		DataSource:     models.SourceRegistered,
		PFID:           req.PFID,
	}
	if err := tripStore.CreateVessel(ctx, &vessel); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newVesselResponse(vessel))
}

// MerchantList handles GET /ais/merchant: all special reports, or one when
// msr_key is given.
func MerchantList(c *fiber.Ctx) error {
	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	reports := store.NewReportStore(pool)

	if key := c.QueryInt("msr_key", 0); key > 0 {
		report, err := reports.GetSpecialReport(c.Context(), int64(key))
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
		}
		if err != nil {
			return internalError(c, err)
		}
		return c.JSON(report)
	}

	list, err := reports.ListSpecialReports(c.Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(list)
}

// MerchantCreate handles POST /ais/merchant: files a special report with
// its goods and voyage block.
func MerchantCreate(c *fiber.Ctx) error {
	var report models.SpecialReport
	if err := c.BodyParser(&report); err != nil {
		return badRequest(c, err)
	}
	if report.VesselKey == 0 {
		return badRequest(c, errors.New("msr_mv_key is required"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	if err := store.NewReportStore(pool).CreateSpecialReport(c.Context(), &report); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// MerchantUpdate handles PUT /ais/merchant: rewrites a special report and
// replaces its nested rows. The response is the stored state, never the
// caller's unvalidated payload.
func MerchantUpdate(c *fiber.Ctx) error {
	var report models.SpecialReport
	if err := c.BodyParser(&report); err != nil {
		return badRequest(c, err)
	}
	if report.Key == 0 {
		return badRequest(c, errors.New("msr_key is required"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	reports := store.NewReportStore(pool)

	if err := reports.UpdateSpecialReport(c.Context(), &report); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
		}
		return internalError(c, err)
	}

	stored, err := reports.GetSpecialReport(c.Context(), report.Key)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(stored)
}

// MerchantDelete handles DELETE /ais/merchant?msr_key=N.
func MerchantDelete(c *fiber.Ctx) error {
	key := c.QueryInt("msr_key", 0)
	if key <= 0 {
		return badRequest(c, errors.New("msr_key is required"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	if err := store.NewReportStore(pool).DeleteSpecialReport(c.Context(), int64(key)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
		}
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "report deleted"})
}

// MisrepList handles GET /ais/misrep: all mission reports, or one when
// mr_key is given.
func MisrepList(c *fiber.Ctx) error {
	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	reports := store.NewReportStore(pool)

	if key := c.QueryInt("mr_key", 0); key > 0 {
		report, err := reports.GetMissionReport(c.Context(), int64(key))
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
		}
		if err != nil {
			return internalError(c, err)
		}
		return c.JSON(report)
	}

	list, err := reports.ListMissionReports(c.Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(list)
}

// resolveDetailVessels fills in mrd_mv_key for every observation whose
// MMSI matches a registered vessel.
func resolveDetailVessels(c *fiber.Ctx, tripStore *store.TripStore, details []models.MissionDetail) error {
	for i := range details {
		if details[i].MMSI == "" {
			continue
		}
		key, err := tripStore.VesselKeyByMMSI(c.Context(), details[i].MMSI)
		if err != nil {
			return err
		}
		details[i].VesselKey = key
	}
	return nil
}

// MisrepCreate handles POST /ais/misrep: files a mission report with its
// nested observations.
func MisrepCreate(c *fiber.Ctx) error {
	var report models.MissionReport
	if err := c.BodyParser(&report); err != nil {
		return badRequest(c, err)
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	if err := resolveDetailVessels(c, store.NewTripStore(pool), report.Details); err != nil {
		return internalError(c, err)
	}
	if err := store.NewReportStore(pool).CreateMissionReport(c.Context(), &report); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// MisrepUpdate handles PUT /ais/misrep: rewrites a mission report and
// replaces its nested rows, responding with the stored state.
func MisrepUpdate(c *fiber.Ctx) error {
	var report models.MissionReport
	if err := c.BodyParser(&report); err != nil {
		return badRequest(c, err)
	}
	if report.Key == 0 {
		return badRequest(c, errors.New("mr_key is required"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	if err := resolveDetailVessels(c, store.NewTripStore(pool), report.Details); err != nil {
		return internalError(c, err)
	}
	reports := store.NewReportStore(pool)

	if err := reports.UpdateMissionReport(c.Context(), &report); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
		}
		return internalError(c, err)
	}

	stored, err := reports.GetMissionReport(c.Context(), report.Key)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(stored)
}

// MisrepDelete handles DELETE /ais/misrep?mr_key=N.
func MisrepDelete(c *fiber.Ctx) error {
	key := c.QueryInt("mr_key", 0)
	if key <= 0 {
		return badRequest(c, errors.New("mr_key is required"))
	}

	pool, err := db.GetDB()
	if err != nil {
		return internalError(c, err)
	}
	if err := store.NewReportStore(pool).DeleteMissionReport(c.Context(), int64(key)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
		}
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "report deleted"})
}
