package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/openforum/backend/internal/config"
	"github.com/openforum/backend/internal/database"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/seed"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev", "test", "clean":
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Initialize(cfg.LogLevel, ""); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := database.Initialize(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seeder := seed.NewSeeder(database.DB)

	switch command {
	case "dev":
		err = seeder.SeedDev()
	case "test":
		err = seeder.SeedTest()
	case "clean":
		err = seeder.Clean()
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("seed %s completed", command)
}
