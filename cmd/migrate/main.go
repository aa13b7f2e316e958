package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/db"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "one of: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "directory holding the schema migrations")
	name := flag.String("name", "", "new migration name, for -cmd=create")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS, for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		fail(logg, "load config", err)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// create and validate work on the files alone, no database needed.
	switch *cmd {
	case "create":
		if *name == "" {
			fail(logg, "create", fmt.Errorf("missing -name"))
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail(logg, "create migration", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail(logg, "validate migrations", err)
		}
		fmt.Println("migrations look good")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(logg, "connect database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(logg, "unwrap sql handle", err)
	}

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, *dir, *cmd); err != nil {
			fail(logg, "goose "+*cmd, err)
		}

	case "version":
		if *version == "" {
			fail(logg, "version", fmt.Errorf("missing -version"))
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			fail(logg, "migrate to version", err)
		}

	default:
		fail(logg, "parse flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
}

func fail(logg *logger.Logger, step string, err error) {
	logg.Error(context.Background(), "migrate failed: "+step, err)
	os.Exit(1)
}
