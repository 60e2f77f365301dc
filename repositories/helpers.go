package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// baseRepository is embedded by every repository. A nil executor means the
// call runs outside any transaction.
type baseRepository struct {
	db *sql.DB
}

func (r baseRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func checkAffectedRows(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("check affected rows", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, storeError("check affected rows", err)
	}
	return n > 0, nil
}

// storeError translates driver failures into engine error kinds. Unique
// violations become conflicts, broken references become not-found and
// anything else means the store could not serve the request.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return apperrors.Wrap(err, apperrors.KindConflict, op+": duplicate record")
		case "23503":
			return apperrors.Wrap(err, apperrors.KindNotFound, op+": referenced record does not exist")
		case "23514":
			return apperrors.Wrap(err, apperrors.KindValidation, op+": check constraint violated")
		}
		return apperrors.StoreUnavailable(op, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return apperrors.Wrap(err, apperrors.KindConflict, op+": duplicate record")
		case sqlite3.ErrConstraintForeignKey:
			return apperrors.Wrap(err, apperrors.KindNotFound, op+": referenced record does not exist")
		case sqlite3.ErrConstraintCheck:
			return apperrors.Wrap(err, apperrors.KindValidation, op+": check constraint violated")
		}
		return apperrors.StoreUnavailable(op, err)
	}

	return apperrors.StoreUnavailable(op, err)
}

// notFoundOr maps sql.ErrNoRows to a not-found error for entity/id.
func notFoundOr(op, entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(entity, id)
	}
	return storeError(op, err)
}

// placeholders renders "$from, $from+1, ..." for n arguments.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func stringArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func utcNow() time.Time {
	return time.Now().UTC()
}
