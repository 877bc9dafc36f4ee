// Seeds the development database with an admin, a set of complete profiles
// and a spread of likes and matches. Refuses to run outside development.
package main

import (
	"os"

	"github.com/idater/idater-backend/internal/config"
	"github.com/idater/idater-backend/internal/db"
	"github.com/idater/idater-backend/internal/logger"
)

func main() {
	cfg := config.New()
	cfg.Log.Component = "seed"
	logger.InitFromConfig(cfg)

	if cfg.App.ENV != "development" {
		logger.Error("seeding is only allowed in development", "env", cfg.App.ENV)
		os.Exit(1)
	}

	database, err := db.NewDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(database); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := db.SeedTestData(database); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database seeded")
}
