package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/harvest-fulfillment/pkg/config"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	timeout time.Duration
}

// dbCommands run against the database; the rest only touch files.
var dbCommands = map[string]func(ctx context.Context, sqlDB *sql.DB, opts options) error{
	"up":     func(ctx context.Context, sqlDB *sql.DB, _ options) error { return migrate.Run(ctx, sqlDB, "up") },
	"down":   func(ctx context.Context, sqlDB *sql.DB, _ options) error { return migrate.Run(ctx, sqlDB, "down") },
	"status": func(ctx context.Context, sqlDB *sql.DB, _ options) error { return migrate.Run(ctx, sqlDB, "status") },

	"version": func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		if opts.version == "" {
			return errors.New("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.version)
	},
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "directory new migrations are written to (create)")
	flag.StringVar(&opts.name, "name", "", "migration name (create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "abort database commands after this long")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.NewMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateEmbedded(); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	command, ok := dbCommands[opts.cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DB.IsSQLite() {
		return errors.New("sqlite schemas come from gorm auto-migrate; goose targets postgres only")
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	start := time.Now()
	if err := command(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds()), "migration complete")
	return nil
}
