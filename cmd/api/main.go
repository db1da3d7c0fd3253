package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/seatrace/seatrace_core/internal/api"
	"github.com/seatrace/seatrace_core/internal/cache"
	"github.com/seatrace/seatrace_core/internal/db"
	"github.com/seatrace/seatrace_core/internal/events"
	"github.com/seatrace/seatrace_core/internal/metrics"
	"github.com/seatrace/seatrace_core/internal/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	log.Println("Starting SeaTrace API server...")

	// Initialize database connection
	if _, err := db.GetDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database connection established")

	// Initialize Redis connection
	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("✓ Redis connection established")

	// Metrics on a side listener
	collector := metrics.NewCollector()
	metricsSrv := collector.Serve(getEnv("METRICS_ADDR", ":9100"))
	defer metricsSrv.Close()

	// Optional NATS event publisher
	var publisher *events.Publisher
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		publisher, err = events.NewPublisher(natsURL, collector)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
		log.Println("✓ NATS connection established")
	}

	api.Configure(collector, publisher)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SeaTrace API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RateLimitMiddleware(rdb, middleware.LoadLimitsFromEnv()))

	// Routes
	app.Get("/health", api.Health)

	ais := app.Group("/ais")
	ais.Post("/register_trip", api.RegisterTrip)
	ais.Post("/populate_data", api.PopulateData)
	ais.Get("/mv_trips_count", api.MVTripsCount)
	ais.Get("/mv_trips", api.MVTrips)
	ais.Get("/stay_count", api.StayCount)
	ais.Get("/ship_counts", api.ShipCounts)
	ais.Get("/ship_counts_week", api.ShipCountsWeek)
	ais.Get("/vessel_position", api.VesselPosition)
	ais.Get("/flag_counts", api.FlagCountsHandler)
	ais.Get("/type_counts", api.TypeCountsHandler)
	ais.Get("/mer_duration_at_sea", api.MerDurationAtSea)
	ais.Get("/mer_activity_trend", api.MerActivityTrend)
	ais.Get("/mer_leave_enter", api.MerLeaveEnter)
	ais.Get("/mer_mv_leave_enter", api.MerMVLeaveEnter)
	ais.Get("/mer_fv_con", api.MerFVCon)
	ais.Get("/mer_visual_act_trend", api.MerVisualActTrend)
	ais.Get("/mer_visual_harbor", api.MerVisualHarbor)
	ais.Get("/mer_visual_flag_count", api.MerVisualFlagCount)
	ais.Get("/merchant_vessel_view/:mv_key", api.MerchantVesselView)
	ais.Get("/merchant", api.MerchantList)
	ais.Post("/merchant", api.MerchantCreate)
	ais.Put("/merchant", api.MerchantUpdate)
	ais.Delete("/merchant", api.MerchantDelete)
	ais.Get("/misrep", api.MisrepList)
	ais.Post("/misrep", api.MisrepCreate)
	ais.Put("/misrep", api.MisrepUpdate)
	ais.Delete("/misrep", api.MisrepDelete)
	ais.Get("/aisvessel", api.AISVesselList)
	ais.Post("/aisvessel", api.AISVesselCreate)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	// Get port from environment
	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
