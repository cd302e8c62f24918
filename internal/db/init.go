// Package db opens the PostgreSQL connection, applies the embedded schema
// migrations and runs background maintenance over credential tables.
package db

import (
	"database/sql"
	"embed"
	"io/fs"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// InitPostgres opens and pings the database, then brings the schema up to date.
func InitPostgres(dsn string, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies all pending migrations.
func Migrate(db *sql.DB, log *zap.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// gooseLogger routes goose progress messages into zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...any) { g.s.Infof(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.s.Fatalf(format, v...) }

// MigrationsFS exposes the embedded migration files.
func MigrationsFS() fs.FS {
	return migrations
}
