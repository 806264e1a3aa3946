package main

import (
	"log"
	"os"
	_ "time/tzdata" // SCHEDULER_TIMEZONE must resolve in images without zoneinfo

	"github.com/andreyxaxa/catalog-ingest/config"
	"github.com/andreyxaxa/catalog-ingest/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// Config
	if _, err := os.Stat(".env"); err == nil {
		if err = godotenv.Load(); err != nil {
			log.Fatalf("config error: load .env: %s", err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config error: %s", err)
	}

	// Run
	app.Run(cfg)
}
