package main

import (
	"context"
	"flag"
	"log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/pgutil"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/store"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	// Connect to database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Creating audit schema (%s)...\n", cfg.Database.Database)

	if err := store.NewStore(db).Migrate(context.Background()); err != nil {
		log.Fatalf("error running migrations: %s", err.Error())
	}

	log.Println("Audit schema up to date")
}
