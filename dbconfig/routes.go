package dbconfig

import (
	"context"
	"database/sql"

	"github.com/kamalbuilds/polyflow-ai-sub001/dbconfig/models"

	"github.com/pkg/errors"
)

// GetFeeRoutes returns the fee baselines from the database, optionally
// filtering by active status. The rows seed the fee cache route table at
// startup.
//
// Parameters:
// - ctx: the context for managing the request.
// - activeOnly: when true only active baselines are returned.
//
// Returns:
// - []models.FeeRoute: a slice of fee route models.
// - error: an error if the database operation fails.
func (r *DBConfig) GetFeeRoutes(ctx context.Context, activeOnly bool) ([]models.FeeRoute, error) {
	db, err := sql.Open("postgres", r.connStr)
	if err != nil {
		return nil, ErrDatabaseConnect
	}
	defer db.Close()

	query := `
       SELECT
           id,
           source_chain_id,
           dest_chain_id,
           asset,
           optimization,
           fee,
           duration_ms,
           confidence,
           active,
           created_at,
           updated_at
       FROM fee_routes
    `

	var args []interface{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}

	query += " ORDER BY source_chain_id ASC, dest_chain_id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query fee routes")
	}
	defer rows.Close()

	var routes []models.FeeRoute
	for rows.Next() {
		var route models.FeeRoute

		err := rows.Scan(
			&route.ID,
			&route.SourceChainID,
			&route.DestChainID,
			&route.Asset,
			&route.Optimization,
			&route.Fee,
			&route.DurationMs,
			&route.Confidence,
			&route.Active,
			&route.CreatedAt,
			&route.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan fee route row")
		}

		routes = append(routes, route)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read fee route rows")
	}

	return routes, nil
}
