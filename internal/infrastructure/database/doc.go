// Package database provides the MariaDB connection pool for Dolphin.
//
// The schema is externally owned; this package only opens and supervises
// the pool. Table access lives in the domain repositories (see
// internal/equipment).
package database
