package main

import (
	"errors"
	"flag"
	"log"
	"os"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-square/internal/repo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	down := flag.Int("down", 0, "roll back N migrations instead of applying")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := repo.NewMigrator(dbURL)
	if err != nil {
		log.Fatalf("Failed to init migrations: %v", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Printf("close migrate: source=%v db=%v", srcErr, dbErr)
		}
	}()

	if *down > 0 {
		if err := m.Steps(-*down); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to roll back: %v", err)
		}
	} else if err := repo.RunMigrations(m); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("Failed to read version: %v", err)
	}
	log.Printf("Schema at version %d (dirty=%v)", version, dirty)
}
