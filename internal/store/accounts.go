package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// AccountKey names the column an account lookup is keyed by.
type AccountKey string

const (
	AccountByUserID AccountKey = "user_id"
	AccountByEmail  AccountKey = "email"
)

// Account is a row from the accounts table. Roles is the raw column value;
// its encoding has varied between a JSON array, a JSON string holding an
// array, and a Postgres text[] literal, so decoding is left to the caller.
type Account struct {
	ID        uuid.UUID
	UserID    string
	Email     string
	Roles     json.RawMessage // nil when the column is NULL
	CreatedAt time.Time
}

var accountColumns = []string{"id", "user_id", "email", "roles", "created_at"}

func scanAccount(row rowScanner) (Account, error) {
	var (
		a      Account
		userID sql.NullString
		email  sql.NullString
		roles  pqtype.NullRawMessage
	)
	if err := row.Scan(&a.ID, &userID, &email, &roles, &a.CreatedAt); err != nil {
		return Account{}, err
	}
	a.UserID = userID.String
	a.Email = email.String
	if roles.Valid {
		a.Roles = roles.RawMessage
	}
	return a, nil
}

// FindAccount returns the single account whose key column equals value.
// Returns ErrNotFound when there is no such row.
func (s *Store) FindAccount(ctx context.Context, key AccountKey, value string) (Account, error) {
	switch key {
	case AccountByUserID, AccountByEmail:
	default:
		return Account{}, fmt.Errorf("FindAccount: unsupported key %q: %w", key, ErrInvalid)
	}

	q := s.sb.Select(accountColumns...).
		From("accounts").
		Where(sq.Eq{string(key): value}).
		Limit(1)

	a, err := getOne(ctx, s.pool, q, scanAccount)
	if err != nil {
		return Account{}, fmt.Errorf("FindAccount %s: %w", key, err)
	}
	return a, nil
}
