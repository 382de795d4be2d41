package dbconfig

import (
	"context"
	"database/sql"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/dbconfig/models"

	"github.com/pkg/errors"
)

// chainColumns is the select list shared by the chain queries.
const chainColumns = `
          id,
          chain_id,
          name,
          chain_type,
          para_id,
          relay,
          rpc_url,
          ws_url,
          symbol,
          decimals,
          address_format,
          ss58_prefix,
          block_time_ms,
          timeout_multiplier,
          health_check_interval_ms,
          reconnect_delay_ms,
          max_reconnect_attempts,
          private_key,
          active,
          created_at,
          updated_at`

func scanChain(row interface{ Scan(...interface{}) error }) (*models.Chain, error) {
	var chain models.Chain
	var wsUrl sql.NullString
	var privateKey sql.NullString

	err := row.Scan(
		&chain.ID,
		&chain.ChainID,
		&chain.Name,
		&chain.Type,
		&chain.ParaID,
		&chain.Relay,
		&chain.RpcUrl,
		&wsUrl,
		&chain.Symbol,
		&chain.Decimals,
		&chain.AddressFormat,
		&chain.SS58Prefix,
		&chain.BlockTimeMs,
		&chain.TimeoutMultiplier,
		&chain.HealthCheckIntervalMs,
		&chain.ReconnectDelayMs,
		&chain.MaxReconnectAttempts,
		&privateKey,
		&chain.Active,
		&chain.CreatedAt,
		&chain.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if wsUrl.Valid {
		chain.WsUrl = wsUrl.String
	}
	if privateKey.Valid {
		chain.PrivateKey = privateKey.String
	}

	return &chain, nil
}

// GetChainConfigs returns the configurations of all chains in the database,
// optionally filtering by active status.
//
// Parameters:
// - ctx: the context for managing the request.
// - activeOnly: when true only active chains are returned.
//
// Returns:
// - []*types.ChainConfig: the chain configurations ordered by chain id.
// - error: an error if the query fails.
func (r *DBConfig) GetChainConfigs(ctx context.Context, activeOnly bool) ([]*types.ChainConfig, error) {
	db, err := sql.Open("postgres", r.connStr)
	if err != nil {
		return nil, ErrDatabaseConnect
	}
	defer db.Close()

	query := `
      SELECT` + chainColumns + `
      FROM chains
  `

	var args []interface{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}

	query += " ORDER BY chain_id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query chains")
	}
	defer rows.Close()

	var configs []*types.ChainConfig
	for rows.Next() {
		chain, err := scanChain(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan chain row")
		}

		configs = append(configs, chain.ChainConfig())
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read chain rows")
	}

	return configs, nil
}

// GetChainConfig returns the configuration of a single chain by chain id.
//
// Parameters:
// - ctx: the context for managing the request.
// - chainID: the unique identifier for the chain.
//
// Returns:
// - *types.ChainConfig: the chain configuration.
// - error: ErrChainNotFound if no row exists for the chain id.
func (r *DBConfig) GetChainConfig(ctx context.Context, chainID uint64) (*types.ChainConfig, error) {
	db, err := sql.Open("postgres", r.connStr)
	if err != nil {
		return nil, ErrDatabaseConnect
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `
       SELECT`+chainColumns+`
       FROM chains
       WHERE chain_id = $1
    `, chainID)

	chain, err := scanChain(row)
	if err == sql.ErrNoRows {
		return nil, ErrChainNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan chain row")
	}

	return chain.ChainConfig(), nil
}
