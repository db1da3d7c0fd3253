package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/seatrace/seatrace_core/internal/ais"
	"github.com/seatrace/seatrace_core/internal/db"
	"github.com/seatrace/seatrace_core/internal/events"
	"github.com/seatrace/seatrace_core/internal/store"
)

const batchSize = 500

func main() {
	// Command-line flags
	csvPath := flag.String("csv", "", "Path to AIS CSV export (required)")
	source := flag.String("source", "ais", "Source label recorded in the import log")

	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: seatrace-import --csv=<path.csv> [--source=ais]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*csvPath); os.IsNotExist(err) {
		log.Fatalf("CSV file not found: %s", *csvPath)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	log.Println("Starting AIS import...")
	log.Printf("CSV file: %s", *csvPath)

	// Initialize database connection
	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	positions := store.NewPositionStore(pool)

	// Create import log entry
	logID, err := positions.StartImportLog(ctx, *source)
	if err != nil {
		log.Fatalf("Failed to create import log: %v", err)
	}

	rows, err := runImport(ctx, positions, *csvPath)
	if err != nil {
		if logErr := positions.FinishImportLog(ctx, logID, "failed", err.Error()); logErr != nil {
			log.Printf("Failed to update import log: %v", logErr)
		}
		publishResult(*source, rows, err)
		log.Fatalf("Import failed: %v", err)
	}

	message := fmt.Sprintf("%d positions imported", rows)
	if err := positions.FinishImportLog(ctx, logID, "success", message); err != nil {
		log.Printf("Failed to update import log: %v", err)
	}
	publishResult(*source, rows, nil)

	log.Printf("Import completed successfully: %s", message)
}

func runImport(ctx context.Context, positions *store.PositionStore, csvPath string) (int, error) {
	start := time.Now()

	log.Println("Step 1/2: Parsing CSV...")
	parsed, err := ais.ParsePositionsCSV(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to parse CSV: %w", err)
	}
	log.Printf("Parsed %d positions", len(parsed))

	log.Println("Step 2/2: Inserting positions...")
	inserted := 0
	for i := 0; i < len(parsed); i += batchSize {
		end := i + batchSize
		if end > len(parsed) {
			end = len(parsed)
		}
		if err := positions.InsertBatch(ctx, parsed[i:end]); err != nil {
			return inserted, fmt.Errorf("failed to insert batch at row %d: %w", i, err)
		}
		inserted = end
		if inserted%5000 == 0 {
			log.Printf("  %d/%d positions inserted", inserted, len(parsed))
		}
	}

	log.Printf("Inserted %d positions in %s", inserted, time.Since(start))
	return inserted, nil
}

// publishResult emits an import event when NATS is configured.
func publishResult(source string, rows int, importErr error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		return
	}

	publisher, err := events.NewPublisher(natsURL, nil)
	if err != nil {
		log.Printf("Failed to connect to NATS: %v", err)
		return
	}
	defer publisher.Close()

	event := events.ImportCompleted{
		FinishedAt: time.Now().UTC(),
		Source:     source,
		Rows:       rows,
	}
	if importErr != nil {
		event.Error = importErr.Error()
	}
	if err := publisher.PublishImportCompleted(event); err != nil {
		log.Printf("Failed to publish import event: %v", err)
	}
}
