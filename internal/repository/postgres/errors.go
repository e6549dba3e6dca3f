package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vedran77/relay/internal/repository"
)

const uniqueViolation = "23505"

// mapWriteErr turns a unique violation into repository.ErrConflict.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}
