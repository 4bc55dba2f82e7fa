package kv

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c Credentials) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(cred Credentials) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "kv_schema_migrations",
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}
	if err := runMigrations("postgres", "postgres", driver); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{sqlStore{
		db: db,
		queries: sqlQueries{
			get: `SELECT value FROM kv WHERE key = $1`,
			upsert: `INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, NOW())
			         ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			delete: `DELETE FROM kv WHERE key = $1`,
		},
		encode: func(b []byte) any { return string(b) },
	}}, nil
}
