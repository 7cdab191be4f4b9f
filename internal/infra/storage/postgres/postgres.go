package postgres

import (
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/pressly/goose/v3"
)

// Migrate applies the goose migrations found in dir. When migrations is
// non-nil dir is resolved inside it instead of on disk.
func Migrate(dsn string, migrations fs.FS, dir string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if migrations != nil {
		goose.SetBaseFS(migrations)
		defer goose.SetBaseFS(nil)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}
