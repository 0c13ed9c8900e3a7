package postgres

import (
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == codeUniqueViolation
}

// classify marks serialization failures and deadlocks as retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch code, _ := pgErrorCode(err); code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", registrations.ErrTransient, err)
	}
	return err
}
