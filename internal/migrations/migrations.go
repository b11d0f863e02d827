// Package migrations owns the broadcast schema: the global event table,
// the shared tape archive, and the per-user completion log. The SQL files
// are embedded so the server binary migrates itself on boot.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var schema embed.FS

// Run brings db up to the latest schema version. Safe to call on every
// start; applied versions are skipped.
func Run(db *sql.DB) error {
	goose.SetBaseFS(schema)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
