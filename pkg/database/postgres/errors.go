package pg

import (
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// CheckNoRows maps sql.ErrNoRows to outErr, passing other errors through.
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// CheckUniqueViolation maps a unique constraint violation to outErr, passing
// other errors through.
func CheckUniqueViolation(inErr, outErr error) error {
	if IsUniqueViolation(inErr) {
		return outErr
	}
	return inErr
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, pgerrcode.UniqueViolation)
}

func IsSerializationFailure(err error) bool {
	return hasCode(err, pgerrcode.SerializationFailure)
}

// hasCode reports whether err wraps a postgres error with the given SQLSTATE.
func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
