package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver, registered as "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// Dialect identifies the database engine behind the store
type Dialect string

// supported dialects
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	// ErrNotFound returned when a record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate returned when a unique constraint would be violated
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidPage returned for page numbers below 1
	ErrInvalidPage = errors.New("invalid page")
)

// Params defines how the store connects
type Params struct {
	PrimaryDSN     string        // postgres connection string, empty to go straight to the fallback
	FallbackPath   string        // sqlite file used if the primary is unavailable
	ConnectTimeout time.Duration // timeout for the primary connectivity check, defaults to 5s
}

// Store provides access to jobs and users tables
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the primary database or falls back to the sqlite file.
// The decision is made once and never retried.
func Open(ctx context.Context, params Params) (*Store, error) {
	if params.PrimaryDSN != "" {
		db, err := openPostgres(ctx, params)
		if err == nil {
			log.Printf("[INFO] connected to postgres database")
			return &Store{db: db, dialect: DialectPostgres, now: time.Now}, nil
		}
		log.Printf("[WARN] postgres connection failed: %v", err)
	} else {
		log.Printf("[INFO] primary database not configured")
	}

	log.Printf("[INFO] falling back to sqlite database %s", params.FallbackPath)
	return NewSQLiteStore(params.FallbackPath)
}

// NewSQLiteStore creates a store backed by the sqlite file at dbPath
func NewSQLiteStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is empty")
	}
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &Store{db: db, dialect: DialectSQLite, now: time.Now}, nil
}

func openPostgres(ctx context.Context, params Params) (*sqlx.DB, error) {
	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	db, err := sqlx.Open("pgx", params.PrimaryDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Dialect returns the engine the store ended up on
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Initialize creates missing tables, existing tables are left as is
func (s *Store) Initialize(ctx context.Context) error {
	for _, query := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func schema(d Dialect) []string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == DialectPostgres {
		idColumn = "SERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + idColumn + `,
			username VARCHAR(80) NOT NULL UNIQUE,
			password_hash VARCHAR(200) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id ` + idColumn + `,
			company VARCHAR(100) NOT NULL,
			heading VARCHAR(100),
			role VARCHAR(100) NOT NULL,
			applylink VARCHAR(200) NOT NULL,
			description TEXT NOT NULL,
			company_url VARCHAR(200),
			created_at BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_role ON jobs(role)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company)`,
	}
}
