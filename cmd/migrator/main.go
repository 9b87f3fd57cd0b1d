package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/fastprodman/lottoengine/internal/infra/logging"
	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/pkg/envconf"
)

//go:embed migrations/*.sql
var baseFS embed.FS

//go:embed test_data/*.sql
var devFS embed.FS

type migratorConfig struct {
	DSN       string     `env:"PG_DSN"`
	LogLevel  slog.Level `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"APP_LOG_FORMAT" envDefault:"json"`
	AppEnv    string     `env:"APP_ENV" envDefault:"PROD"`
}

func main() {
	err := migrateAll()
	if err != nil {
		slog.Error("migration run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migration run finished successfully")
}

func migrateAll() error {
	cfg := new(migratorConfig)

	err := envconf.LoadWithDotenv(cfg, ".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	db, err := sql.Open(pgutils.DriverName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	err = db.Ping()
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	err = runMigrations(db, "schema_migrations", baseFS, "migrations")
	if err != nil {
		return fmt.Errorf("base migrations failed: %w", err)
	}

	slog.Info("base migrations applied")

	if cfg.AppEnv == "DEV" {
		// seed data is versioned in its own table so it never collides with schema versions
		err = runMigrations(db, "seed_migrations", devFS, "test_data")
		if err != nil {
			return fmt.Errorf("dev seed migrations failed: %w", err)
		}

		slog.Info("dev seed migrations applied")
	}

	return nil
}

func runMigrations(db *sql.DB, table string, fsys embed.FS, dir string) error {
	var driver database.Driver

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	return nil
}
