package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
)

// Database configuration constants.
const (
	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxLifetime refreshes pooled connections so the pool survives
	// MariaDB wait_timeout and network churn.
	connMaxLifetime = time.Hour

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// queryTimeout bounds individual statements issued through the
	// convenience wrappers.
	queryTimeout = 10 * time.Second
)

// DB wraps a sql.DB connection pool to the externally owned MariaDB
// instance. Schema management lives outside this process; Dolphin only
// reads and writes the Equipment, EquipmentLocation, EquipmentStatus and
// DisplayDeviceInfo tables.
type DB struct {
	*sql.DB
	dsn string
}

// Open creates a new MariaDB connection pool from the given configuration.
//
// It performs the following setup:
//  1. Builds the DSN from host/user/password/database
//  2. Opens the pool and applies pool limits
//  3. Verifies connectivity with a ping
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If connection or configuration fails
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		DB:  sqlDB,
		dsn: dsn,
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	return db, nil
}

// buildDSN assembles the go-sql-driver DSN from configuration.
//
// parseTime is enabled so DATETIME columns scan into time.Time. The driver
// location is pinned to KST because receive_date is stored as naive KST
// time; the external schema's existing consumers read it that way.
func buildDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Database == "" {
		return "", fmt.Errorf("database config incomplete: host, user and database are required")
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.FixedZone("KST", 9*60*60)

	return mc.FormatDSN(), nil
}

// Close closes the database connection pool gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is accessible and functioning.
// It performs a simple query to ensure the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var result int
	if err := db.QueryRowContext(checkCtx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
// Useful for monitoring and debugging connection issues.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}
