package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// defaultMaxOpenConns bounds the pool when the config leaves it unset.
	defaultMaxOpenConns = 5
)

// DB wraps a sql.DB connection with the dialect it was opened for.
type DB struct {
	*sql.DB
	path    string
	dialect Dialect
}

// Config contains database configuration options.
// These map to the database section of grapher.yaml.
type Config struct {
	// Driver is one of "sqlite3", "mysql" or "postgres". Empty means sqlite3.
	Driver string

	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	// ":memory:" opens a private in-memory database.
	Path string

	// DSN is the data source name for the mysql and postgres drivers.
	DSN string

	// WALMode enables Write-Ahead Logging for better concurrent access (SQLite only).
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock in seconds (SQLite only).
	BusyTimeout int

	// MaxOpenConns bounds the connection pool. Zero uses the default.
	MaxOpenConns int
}

// Open creates a new database connection with the specified configuration
// and verifies it with a ping.
func Open(cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var (
		driverName string
		dsn        string
		maxOpen    = cfg.MaxOpenConns
	)
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}

	switch dialect {
	case SQLite:
		driverName = "sqlite3"
		dsn, err = sqliteDSN(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Path == ":memory:" {
			// Every connection to :memory: is a distinct database.
			maxOpen = 1
		}
	case MySQL:
		driverName = "mysql"
		parsed, perr := mysql.ParseDSN(cfg.DSN)
		if perr != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", perr)
		}
		dsn = parsed.FormatDSN()
	case Postgres:
		// The pgx stdlib registers driver name "pgx".
		driverName = "pgx"
		dsn = cfg.DSN
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		DB:      sqlDB,
		path:    cfg.Path,
		dialect: dialect,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if dialect == SQLite && cfg.Path != ":memory:" {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write
	}

	return db, nil
}

// sqliteDSN builds the go-sqlite3 connection string with pragmas.
// See: https://github.com/mattn/go-sqlite3#connection-string
func sqliteDSN(cfg Config) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("database path is required for sqlite3")
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode && cfg.Path != ":memory:" {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return connStr, nil
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path of a SQLite database, or "" for other drivers.
func (db *DB) Path() string {
	return db.path
}

// Dialect reports which SQL backend the connection talks to.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
