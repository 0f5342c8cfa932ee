package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/tenant/*.sql migrations/shared/*.sql
var migrationFiles embed.FS

// Schema selects which embedded migration set to apply.
type Schema string

const (
	SchemaTenant Schema = "tenant"
	SchemaShared Schema = "shared"
)

// Migrate applies every pending up migration of the schema to the database
// at dsn. It reports whether anything was applied.
func Migrate(dsn string, schema Schema) (bool, error) {
	src, err := iofs.New(migrationFiles, "migrations/"+string(schema))
	if err != nil {
		return false, fmt.Errorf("open %s migrations: %w", schema, err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return false, fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return false, fmt.Errorf("ping migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return false, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return false, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply %s migrations: %w", schema, err)
	}
	return true, nil
}
