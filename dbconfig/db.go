// Package dbconfig reads static configuration and writes transaction records
// in Postgres: the chain table, the fee route baselines, and per-transaction
// lifecycle snapshots. Connections are opened per operation and closed when
// the operation completes.
package dbconfig

import (
	_ "github.com/lib/pq"
)

// DBConfig issues the repository's Postgres queries. It holds only the
// connection string; each operation opens and closes its own handle.
type DBConfig struct {
	connStr string
}

// NewDBConfig creates a repository over the given Postgres connection string.
//
// Parameters:
// - connStr: the Postgres connection string.
//
// Returns:
// - *DBConfig: the repository.
// - error: reserved for connection string validation.
func NewDBConfig(connStr string) (*DBConfig, error) {
	return &DBConfig{
		connStr: connStr,
	}, nil
}
