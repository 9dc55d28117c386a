package main

import (
	"context"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"cmsig/adapters/api"
	"cmsig/adapters/postgres"
	"cmsig/app"
	"cmsig/internal/config"
	"cmsig/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var repo ports.ObservationRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := postgres.Schema(context.Background(), db); err != nil {
			log.Fatalf("Failed to prepare schema: %v", err)
		}
		repo = postgres.NewObservationRepository(db)
	} else {
		log.Println("DATABASE_URL not set, storage endpoints disabled")
	}

	server := api.NewServer(app.NewAnalysisService(), repo)

	addr := ":" + cfg.Server.Port
	log.Printf("Starting API server on %s", addr)
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatal("Server failed:", err)
	}
}
