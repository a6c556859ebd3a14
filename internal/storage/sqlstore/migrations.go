package sqlstore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// RunMigrations runs all pending migrations of the dialect.
func RunMigrations(db *sql.DB, dialect Dialect) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(dialect.gooseDialect()); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.Up(db, "migrations/"+string(dialect))
}
