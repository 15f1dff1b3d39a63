package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-square/internal/repo"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := repo.NewPool(ctx, dbURL, "toko-square-seeder")
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	defer pool.Close()

	seedGeoZones(ctx, pool)
	seedAttributeGroups(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedGeoZones(ctx context.Context, db *pgxpool.Pool) {
	log.Println("Seeding geo zones...")
	zones := []struct {
		id        int64
		name      string
		countries []string
	}{
		{1, "North America", []string{"US", "CA"}},
		{2, "Square EU", []string{"GB", "IE", "FR", "ES"}},
		{3, "Asia Pacific", []string{"AU", "JP"}},
	}
	for _, z := range zones {
		if _, err := db.Exec(ctx, `
			INSERT INTO geo_zones (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, z.id, z.name); err != nil {
			log.Fatalf("Failed to seed geo zone %s: %v", z.name, err)
		}
		for _, country := range z.countries {
			if _, err := db.Exec(ctx, `
				INSERT INTO zones_to_geo_zones (geo_zone_id, country_code, zone_code) VALUES ($1, $2, '')
				ON CONFLICT DO NOTHING`, z.id, country); err != nil {
				log.Fatalf("Failed to seed %s into %s: %v", country, z.name, err)
			}
		}
	}
}

func seedAttributeGroups(ctx context.Context, db *pgxpool.Pool) {
	log.Println("Seeding attribute groups...")
	groups := []struct {
		id    int64
		names map[string]string
	}{
		{1, map[string]string{"en": "Size", "id": "Ukuran"}},
		{2, map[string]string{"en": "Color", "id": "Warna"}},
		{3, map[string]string{"en": "Engraving"}},
	}
	for _, g := range groups {
		if _, err := db.Exec(ctx, `INSERT INTO attribute_groups (id) VALUES ($1) ON CONFLICT DO NOTHING`, g.id); err != nil {
			log.Fatalf("Failed to seed attribute group %d: %v", g.id, err)
		}
		for lang, name := range g.names {
			if _, err := db.Exec(ctx, `
				INSERT INTO attribute_groups_info (group_id, language_code, name) VALUES ($1, $2, $3)
				ON CONFLICT (group_id, language_code) DO UPDATE SET name = EXCLUDED.name`, g.id, lang, name); err != nil {
				log.Fatalf("Failed to seed attribute group %d (%s): %v", g.id, lang, err)
			}
		}
	}
}
