// Package storage opens the SQL databases the initializer migrates.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver selects the SQL dialect and database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver accepts sqlite, sqlite3, postgres and postgresql.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d Driver) Placeholder(n int) string {
	if d == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Config describes a database connection and its pool.
type Config struct {
	Driver Driver
	// DSN is a file path (or ":memory:") for sqlite and a connection URL or
	// key=value string for postgres.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DB is a *sql.DB that remembers its dialect.
type DB struct {
	*sql.DB
	Driver Driver
	// Path is the sqlite database file, empty for postgres and in-memory databases.
	Path string
}

// Open prepares a connection pool. Like sql.Open it does not connect; the
// first query does, so connectivity failures surface where they can be retried.
// For file-backed sqlite the parent directory is created.
func Open(cfg Config) (*DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database DSN is required")
	}

	switch cfg.Driver {
	case DriverSQLite:
		return openSQLite(cfg)
	case DriverPostgres:
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(cfg Config) (*DB, error) {
	dsn, path := sqliteDSN(cfg.DSN)
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: writes serialize anyway, and every connection to an
	// in-memory database would otherwise see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return &DB{DB: sqlDB, Driver: DriverSQLite, Path: path}, nil
}

// sqliteDSN appends busy-timeout and foreign-key pragmas and returns the file
// path, empty for in-memory databases.
func sqliteDSN(raw string) (dsn, path string) {
	raw = strings.TrimSpace(raw)
	base, query, _ := strings.Cut(raw, "?")
	memory := base == ":memory:" || strings.Contains(base, ":memory:") || strings.Contains(query, "mode=memory")
	if !memory {
		path = filepath.Clean(strings.TrimPrefix(base, "file:"))
	}

	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if query == "" {
		return base + "?" + pragmas, path
	}
	return base + "?" + query + "&" + pragmas, path
}

func openPostgres(cfg Config) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		sqlDB.SetMaxOpenConns(25)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		sqlDB.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	} else {
		sqlDB.SetConnMaxIdleTime(time.Minute)
	}

	return &DB{DB: sqlDB, Driver: DriverPostgres}, nil
}

// Ping verifies connectivity.
func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return errors.New("database is not open")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s db: %w", db.Driver, err)
	}
	return nil
}

// Close closes the pool. Nil receivers are ignored.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}
