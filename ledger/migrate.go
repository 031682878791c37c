package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/withobsrvr/control-verify/ledger/migrations"
)

// migrateLogger adapts the standard logger to migrate.Logger so migration
// progress lands in the same log stream as the rest of the ledger.
type migrateLogger struct {
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("ledger/migrate: "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.verbose
}

// RunMigrations brings db's schema up to the latest embedded migration. It
// is safe to call on every process start: golang-migrate no-ops when the
// schema is already current.
func RunMigrations(db *sql.DB) error {
	if err := migrations.Validate(); err != nil {
		return fmt.Errorf("ledger: invalid embedded migrations: %w", err)
	}
	if names, err := migrations.Names(); err == nil {
		for _, name := range names {
			if sum, err := migrations.Checksum(name); err == nil {
				log.Printf("ledger/migrate: embedded %s sha256:%s", name, sum)
			}
		}
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "ledger_schema_migrations"})
	if err != nil {
		return fmt.Errorf("ledger: build postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS(), ".")
	if err != nil {
		return fmt.Errorf("ledger: build migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("ledger: construct migrator: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ledger: apply migrations: %w", err)
	}
	return nil
}
