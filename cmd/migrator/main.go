package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/pflag"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// migrationLogger adapts the std logger to migrate.Logger.
type migrationLogger struct {
	verbose bool
}

func (l migrationLogger) Printf(format string, v ...any) {
	log.Printf("[Migrator] "+format, v...)
}

func (l migrationLogger) Verbose() bool { return l.verbose }

func main() {
	fs := pflag.NewFlagSet("migrator", pflag.ExitOnError)
	configFile := config.RegisterFlags(fs)
	down := fs.Bool("down", false, "roll back every migration")
	steps := fs.IntP("steps", "n", 0, "apply (or with --down, roll back) only n migrations")
	verbose := fs.BoolP("verbose", "v", false, "log every migration step")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[Migrator] %v", err)
	}

	if err := run(cfg.Storage.PostgresURL, *down, *steps, *verbose); err != nil {
		log.Printf("[Migrator] %v", err)
		os.Exit(2)
	}
}

func run(databaseURL string, down bool, steps int, verbose bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.OpenPostgres(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	source, err := iofs.New(store.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	m.Log = migrationLogger{verbose: verbose}

	switch {
	case steps != 0 && down:
		err = m.Steps(-steps)
	case steps != 0:
		err = m.Steps(steps)
	case down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		m.Log.Printf("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		m.Log.Printf("database has no migrations applied")
	case err != nil:
		return err
	default:
		m.Log.Printf("database at version %d (dirty=%t)", version, dirty)
	}
	return nil
}
