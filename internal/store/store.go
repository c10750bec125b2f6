// Package store is the PostgreSQL persistence layer: storms, advisories,
// forecasts, zones, and the audit log. Writes that the pipeline treats as
// atomic (forecast and zone replacement, archival) run in one transaction.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsDir is the embedded path goose reads migrations from.
const migrationsDir = "migrations"

// Sentinel errors returned by store operations.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a guarded update found the row in a different state.
	ErrConflict = errors.New("store: conflicting state")
)

// Store wraps the database handle. All methods are safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL and verifies the connection. maxOpenConns
// bounds the pool; zero leaves the driver default.
func Open(ctx context.Context, databaseURL string, maxOpenConns int) (*Store, error) {
	db, connectErr := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if connectErr != nil {
		return nil, fmt.Errorf("connect to database: %w", connectErr)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	return &Store{db: db}, nil
}

// New wraps an existing handle; used by tests with a mock driver.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)

	dialectErr := goose.SetDialect("postgres")
	if dialectErr != nil {
		return fmt.Errorf("set migration dialect: %w", dialectErr)
	}

	upErr := goose.UpContext(ctx, s.db.DB, migrationsDir)
	if upErr != nil {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	return nil
}

// Ping verifies the connection is alive; wired into the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, beginErr := s.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("begin transaction: %w", beginErr)
	}

	fnErr := fn(tx)
	if fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(fnErr, fmt.Errorf("rollback: %w", rbErr))
		}

		return fnErr
	}

	commitErr := tx.Commit()
	if commitErr != nil {
		return fmt.Errorf("commit transaction: %w", commitErr)
	}

	return nil
}
