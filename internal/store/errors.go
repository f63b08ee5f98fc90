package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrInvalid       = errors.New("store: invalid value")
)

// mapError converts database/sql and lib/pq errors to store sentinels.
// Context errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return errors.Join(ErrAlreadyExists, err)
		case "23503": // foreign_key_violation
			return errors.Join(ErrNotFound, err)
		case "23514", "22P02": // check_violation, invalid_text_representation
			return errors.Join(ErrInvalid, err)
		}
	}
	return err
}
