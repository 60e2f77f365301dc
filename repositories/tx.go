package repositories

import (
	"context"
	"database/sql"
)

// RunInTx executes fn in a transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = storeError("commit transaction", commitErr)
		}
	}()

	return fn(tx)
}
