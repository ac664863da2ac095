package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-scheduling/config"
	"github.com/jwalitptl/clinic-scheduling/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 0, "migrations to roll back with down; 0 means all")
	flag.Parse()

	direction := flag.Arg(0)
	if direction != "up" && direction != "down" {
		log.Fatal().Msg("usage: migrate [-steps N] up|down")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())

	if cfg.Database.Driver != config.DriverPostgres {
		appLogger.Info("Nothing to migrate", "driver", cfg.Database.Driver)
		os.Exit(0)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	var n int
	if direction == "up" {
		n, err = postgres.MigrateUp(db)
	} else {
		n, err = postgres.MigrateDown(db, *steps)
	}
	if err != nil {
		appLogger.Fatal(err, "Migration failed", "direction", direction)
	}
	appLogger.Info("Migrations applied", "direction", direction, "count", n)
}
