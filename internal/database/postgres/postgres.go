// Package postgres implements database.Adapter against PostgreSQL via sqlx
// and lib/pq, for hosted deployments (spec.md §9). Every method mirrors the
// behavioral contract internal/database/memory establishes for tests: the
// same content-hash delta, atomic one-time-code consumption, partial
// sync-state merge and status-dependent purge cutoffs, expressed as SQL
// instead of map operations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/nordicledger/accounting-gateway/internal/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements database.Adapter over a pooled Postgres connection.
type Store struct {
	db *sqlx.DB
}

// Config tunes the connection pool. Zero values fall back to sane defaults.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open establishes the pool and verifies connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open sqlx connection, for tests and sqlmock.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies every embedded migration in order. Safe to call on every
// boot: golang-migrate no-ops once the schema is current.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}

var _ database.Adapter = (*Store)(nil)

// mapNotFound normalizes sql.ErrNoRows to database.ErrNotFound so callers
// never need to know which driver produced the lookup.
func mapNotFound(err error) error {
	if err == sql.ErrNoRows {
		return database.ErrNotFound
	}
	return err
}

// rowsAffectedOrNotFound turns a zero-row UPDATE/DELETE result into
// database.ErrNotFound, matching memory.Store's behavior of erroring when
// the target row doesn't exist.
func rowsAffectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

func placeholder(n int) string {
	return strconv.Itoa(n)
}
