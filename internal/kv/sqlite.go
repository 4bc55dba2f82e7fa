package kv

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// ":memory:" gives a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}
	if err := runMigrations("sqlite", "sqlite", driver); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{sqlStore{
		db: db,
		queries: sqlQueries{
			get: `SELECT value FROM kv WHERE key = ?`,
			upsert: `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			delete: `DELETE FROM kv WHERE key = ?`,
		},
		encode: func(b []byte) any { return b },
	}}, nil
}
