package dbconfig

import "github.com/pkg/errors"

var (
	// ErrChainNotFound is returned by GetChainConfig when no row exists for
	// the requested chain id.
	ErrChainNotFound = errors.New("chain not found")

	// ErrDatabaseConnect is returned when the database handle cannot be
	// opened. The driver error is not wrapped, keeping the connection string
	// out of logs.
	ErrDatabaseConnect = errors.New("failed to connect to database")
)
