package errors

// Postgres helpers: SQLSTATE classification for the candidate read and the batched result write

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlstateUndefinedTable  = "42P01"
	sqlstateCannotConnect   = "57P03"
	sqlstateQueryCanceled   = "57014"
	sqlstateAdminShutdown   = "57P01"
	sqlstateTooManyConns    = "53300"
	sqlstateSerialization   = "40001"
	sqlstateDeadlock        = "40P01"
	sqlstateLockUnavailable = "55P03"
)

// pgClass is how the pipeline treats one SQLSTATE
type pgClass struct {
	code  ErrorCode
	retry bool
}

var pgClasses = map[string]pgClass{
	// bad table, column or filter configuration
	"42P01": {ErrorCodeNotFound, false},
	"42703": {ErrorCodeNotFound, false},
	"2201B": {ErrorCodeInvalidArgument, false},
	"22P02": {ErrorCodeInvalidArgument, false},
	"22001": {ErrorCodeInvalidArgument, false},
	"23503": {ErrorCodeInvalidArgument, false},
	"23502": {ErrorCodeValidation, false},
	"23514": {ErrorCodeValidation, false},
	"23505": {ErrorCodeDuplicateKey, false},

	// contention on the result table
	sqlstateSerialization:   {ErrorCodeDB, true},
	sqlstateDeadlock:        {ErrorCodeDB, true},
	sqlstateLockUnavailable: {ErrorCodeDB, true},

	// the server or the write budget gave out
	sqlstateQueryCanceled: {ErrorCodeUnavailable, true},
	sqlstateAdminShutdown: {ErrorCodeUnavailable, true},
	sqlstateCannotConnect: {ErrorCodeUnavailable, false},
	sqlstateTooManyConns:  {ErrorCodeUnavailable, true},
	"25006":               {ErrorCodeUnavailable, false},
}

// retryText covers failures pgx reports without a PgError, mostly on commit
var retryText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"canceling statement due to statement timeout",
	"terminating connection due to administrator command",
}

// ExtractPgError returns (*pgconn.PgError, true) if the root cause is a PgError
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(Root(err), &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether err is a Postgres error with the given SQLSTATE
func IsSQLState(err error, state string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == state
}

// IsUndefinedTable reports whether the configured candidate table is missing
func IsUndefinedTable(err error) bool { return IsSQLState(err, sqlstateUndefinedTable) }

// IsConnectionUnavailable reports whether the server is still starting or refusing sessions
func IsConnectionUnavailable(err error) bool {
	return IsSQLState(err, sqlstateCannotConnect) || IsSQLState(err, sqlstateTooManyConns)
}

// IsStatementTimeout reports whether a statement was cancelled by statement_timeout
func IsStatementTimeout(err error) bool { return IsSQLState(err, sqlstateQueryCanceled) }

// DBErrorCode maps a Postgres error to an ErrorCode. ok is false when err carries no PgError
func DBErrorCode(err error) (ErrorCode, bool) {
	var pgErr *pgconn.PgError
	if !stderrs.As(err, &pgErr) {
		return ErrorCodeUnknown, false
	}
	if c, ok := pgClasses[pgErr.Code]; ok {
		return c.code, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a pg error with its mapped ErrorCode. nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// FromPostgresf is the formatted variant of FromPostgres
func FromPostgresf(err error, format string, a ...any) error {
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// IsRetryable reports whether a store failure is transient. A local cancel or deadline is not
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgErr, ok := ExtractPgError(err); ok {
		return pgClasses[pgErr.Code].retry
	}
	s := strings.ToLower(Root(err).Error())
	for _, t := range retryText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
