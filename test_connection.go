package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/seatrace/seatrace_core/internal/cache"
	"github.com/seatrace/seatrace_core/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("(no .env file found, using environment variables)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg := db.LoadConfigFromEnv()
	fmt.Println("🔗 Testing database connection...")
	fmt.Printf("   Host: %s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("   User: %s\n", cfg.User)
	fmt.Printf("   Database: %s\n\n", cfg.Database)

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v\n", err)
	}
	defer db.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("❌ Failed to ping database: %v\n", err)
	}
	fmt.Println("✅ Database connection successful!")

	var pgVersion string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&pgVersion); err != nil {
		log.Printf("⚠️  Could not get PostgreSQL version: %v\n", err)
	} else {
		fmt.Printf("📊 PostgreSQL Version:\n   %s\n\n", pgVersion)
	}

	fmt.Println("📋 Checking existing tables...")
	rows, err := pool.Query(ctx, `
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = 'public'
		ORDER BY tablename
	`)
	if err != nil {
		log.Printf("⚠️  Could not list tables: %v\n", err)
	} else {
		defer rows.Close()
		tableCount := 0
		for rows.Next() {
			var tablename string
			if err := rows.Scan(&tablename); err != nil {
				continue
			}
			fmt.Printf("   - %s\n", tablename)
			tableCount++
		}
		if tableCount == 0 {
			fmt.Println("   (no tables found - schema needs to be created)")
		}
		fmt.Printf("\n   Total: %d tables\n", tableCount)
	}

	fmt.Println("\n🔗 Testing Redis connection...")
	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v\n", err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ Failed to ping Redis: %v\n", err)
	}
	fmt.Println("✅ Redis connection successful!")

	fmt.Println("\n✅ Connection test completed successfully!")
}
