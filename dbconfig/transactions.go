package dbconfig

import (
	"context"
	"database/sql"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// InsertTransaction inserts a newly accepted transaction into the database.
// Re-inserting an existing id is a no-op so replayed submissions do not
// overwrite later lifecycle state.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction snapshot to record.
//
// Returns:
// - error: an error if the database operation fails.
func (r *DBConfig) InsertTransaction(ctx context.Context, tx *types.Transaction) error {
	db, err := sql.Open("postgres", r.connStr)
	if err != nil {
		return ErrDatabaseConnect
	}
	defer db.Close()

	amount := "0"
	if tx.Amount != nil {
		amount = tx.Amount.String()
	}

	_, err = db.ExecContext(ctx, `
       INSERT INTO transactions (
           id,
           kind,
           source_chain_id,
           dest_chain_id,
           asset,
           amount,
           recipient,
           fee_asset,
           optimization,
           include_refund,
           status,
           attempt,
           current_hop,
           hash,
           last_error,
           estimated_fee,
           created_at,
           updated_at
       ) VALUES (
           $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
           $13, $14, $15, $16, $17, $18
       )
       ON CONFLICT (id) DO NOTHING`,
		tx.ID,
		tx.Kind,
		tx.SourceChain,
		tx.DestChain,
		tx.Asset,
		amount,
		tx.Recipient,
		tx.FeeAsset,
		tx.Optimization,
		tx.IncludeRefund,
		tx.Status,
		tx.Attempt,
		tx.CurrentHop,
		tx.Hash,
		tx.LastError,
		estimatedFee(tx),
		tx.CreatedAt,
		tx.UpdatedAt,
	)

	return errors.Wrap(err, "failed to insert transaction")
}

// UpdateTransaction stores the latest lifecycle snapshot of a transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction snapshot to record.
//
// Returns:
// - error: an error if the update fails or no row exists for the id.
func (r *DBConfig) UpdateTransaction(ctx context.Context, tx *types.Transaction) error {
	db, err := sql.Open("postgres", r.connStr)
	if err != nil {
		return ErrDatabaseConnect
	}
	defer db.Close()

	query := `
		UPDATE transactions
			SET status = $1,
			    attempt = $2,
			    current_hop = $3,
			    hash = $4,
			    last_error = $5,
			    estimated_fee = $6,
			    updated_at = $7
		WHERE id = $8
    `

	result, err := db.ExecContext(ctx, query,
		tx.Status,
		tx.Attempt,
		tx.CurrentHop,
		tx.Hash,
		tx.LastError,
		estimatedFee(tx),
		tx.UpdatedAt,
		tx.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update transaction")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return errors.Errorf("transaction %s not found", tx.ID)
	}

	return nil
}

// estimatedFee renders the quoted fee as a nullable numeric column value.
func estimatedFee(tx *types.Transaction) sql.NullString {
	if tx.Quote == nil || tx.Quote.EstimatedFee == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tx.Quote.EstimatedFee.String(), Valid: true}
}
