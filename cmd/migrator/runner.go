package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hardbanrecords/hardban-lab/migrations"
)

type (
	// MigrationRunner is the command surface of the migrator.
	MigrationRunner interface {
		Up() error
		Down() error
		Status() error
		Version() error
		Drop() error
		Close() error
	}

	// Runner implements MigrationRunner with golang-migrate over an iofs source.
	Runner struct {
		config     *Config
		migrate    *migrate.Migrate
		db         *sql.DB
		migrations *migrations.Set
	}

	migrateLogger struct{}
)

var (
	_ MigrationRunner = (*Runner)(nil)
	_ migrate.Logger  = (*migrateLogger)(nil)
	_ io.Writer       = (*migrateLogger)(nil)
)

// NewMigrationRunner validates the migration set, connects to the database and
// prepares golang-migrate. A nil fsys selects the embedded migrations.
func NewMigrationRunner(config *Config, fsys fs.FS) (*Runner, error) {
	log.Printf("Initializing migration runner with config: %s", config.String())

	set := migrations.New(fsys)

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("embedded migration validation failed: %w", err)
	}

	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: config.MigrationTable,
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(set.FS(), ".")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{}

	return &Runner{
		config:     config,
		migrate:    m,
		db:         db,
		migrations: set,
	}, nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	if err := r.migrations.Validate(); err != nil {
		return fmt.Errorf("pre-operation validation failed: %w", err)
	}

	err := r.migrate.Up()

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No new migrations to apply")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	default:
		log.Println("All migrations applied successfully")
	}

	return nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down() error {
	if err := r.migrations.Validate(); err != nil {
		return fmt.Errorf("pre-operation validation failed: %w", err)
	}

	err := r.migrate.Steps(-1)

	switch {
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, fs.ErrNotExist):
		log.Println("No migrations to rollback")
	case err != nil:
		return fmt.Errorf("migration down failed: %w", err)
	default:
		log.Println("Last migration rolled back successfully")
	}

	return nil
}

// Status logs the applied version, its state and how many migrations are pending.
func (r *Runner) Status() error {
	current, dirty, err := r.current()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty (needs manual intervention)"
	}

	log.Printf("Migration Status: Version %03d (%s)", current, state)
	r.logCompatibility(current)

	return nil
}

// Version logs the applied version.
func (r *Runner) Version() error {
	current, dirty, err := r.current()
	if err != nil {
		return err
	}

	note := ""
	if dirty {
		note = " (dirty)"
	}

	log.Printf("Current Version: %03d%s", current, note)

	return nil
}

// Drop removes every table in the database.
func (r *Runner) Drop() error {
	log.Println("WARNING: Dropping all tables...")

	if err := r.migrate.Drop(); err != nil {
		return fmt.Errorf("drop operation failed: %w", err)
	}

	log.Println("All tables dropped successfully")

	return nil
}

// Close releases the migrate instance and the database pool.
func (r *Runner) Close() error {
	var errs []error

	if r.migrate != nil {
		sourceErr, dbErr := r.migrate.Close()
		if sourceErr != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", sourceErr))
		}

		if dbErr != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", dbErr))
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database connection close error: %w", err))
		}
	}

	return errors.Join(errs...)
}

// current returns the applied version, 0 when nothing is applied.
func (r *Runner) current() (int, bool, error) {
	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return int(version), dirty, nil // #nosec G115 - sequences are three digits
}

func (r *Runner) logCompatibility(current int) {
	supported := r.migrations.MaxSequence()

	switch {
	case current == supported:
		log.Printf("Schema v%03d is up to date", current)
	case current < supported:
		log.Printf("Schema v%03d: %d migration(s) pending, migrator supports v%03d",
			current, supported-current, supported)
	default:
		log.Printf("Schema v%03d is newer than this migrator supports (v%03d)", current, supported)
	}
}

func (l *migrateLogger) Printf(format string, v ...any) {
	log.Printf("[MIGRATE] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return true
}

func (l *migrateLogger) Write(p []byte) (int, error) {
	log.Printf("[MIGRATE] %s", string(p))

	return len(p), nil
}
