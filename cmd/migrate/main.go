package main

import (
	"context"
	"log"
	"os"

	"github.com/echarter/fleetauth/core"
	"github.com/echarter/fleetauth/directory"
	"github.com/echarter/fleetauth/internal/config"
)

// usage: migrate [up|down|seed]
func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if command == "seed" {
		seed(cfg)
		return
	}
	if err := directory.Migrate(cfg.DatabaseURL, command); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrate %s: done", command)
}

func seed(cfg *config.Config) {
	if cfg.DatabaseURL == "" || cfg.SeedEmail == "" {
		log.Fatalf("seed needs DATABASE_URL, SEED_EMAIL and SEED_PASSWORD")
	}
	ctx := context.Background()
	pool, err := directory.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	a, err := directory.Seed(ctx, directory.NewPostgres(pool), core.NewBcryptHasher(cfg.BcryptCost), cfg.SeedEmail, cfg.SeedPassword)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("seeded account %s (%s)", a.ID, a.Email)
}
