package driver

import (
	"context"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const sqliteProbe = "SELECT sqlite_version()"

// SQLite opens connections to a database file.
type SQLite struct {
	path string
	drv  *sqlite3.SQLiteDriver
}

// NewSQLite prepares a SQLite opener for the database at path.
func NewSQLite(cfg Config) *SQLite {
	return &SQLite{path: cfg.Path, drv: &sqlite3.SQLiteDriver{}}
}

// Open opens the database file, creating it if needed.
func (s *SQLite) Open(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.drv.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", s.path, err)
	}
	log.WithField("path", s.path).Debug("opened sqlite connection")
	return newConn(raw, TypeSQLite, sqliteProbe), nil
}
