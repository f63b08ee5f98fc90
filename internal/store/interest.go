package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// InterestedUser is a public signup from the "get involved" form.
type InterestedUser struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InterestedUserInput holds a new signup.
type InterestedUserInput struct {
	Name    string
	Email   string
	Message string
}

const interestTable = "interested_users"

var interestColumns = []string{"id", "name", "email", "message", "created_at"}

func scanInterestedUser(row rowScanner) (InterestedUser, error) {
	var (
		u   InterestedUser
		msg sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &msg, &u.CreatedAt); err != nil {
		return InterestedUser{}, err
	}
	u.Message = msg.String
	return u, nil
}

// CreateInterestedUser records a signup. Email is unique; a repeat signup
// returns ErrAlreadyExists.
func (s *Store) CreateInterestedUser(ctx context.Context, in InterestedUserInput) (InterestedUser, error) {
	q := s.sb.Insert(interestTable).
		Columns("id", "name", "email", "message").
		Values(uuid.New(), in.Name, in.Email, nullString(in.Message)).
		Suffix(returning(interestColumns))

	u, err := getOne(ctx, s.pool, q, scanInterestedUser)
	if err != nil {
		return InterestedUser{}, fmt.Errorf("CreateInterestedUser: %w", err)
	}
	return u, nil
}

// ListInterestedUsers returns a page of signups, newest first.
func (s *Store) ListInterestedUsers(ctx context.Context, p ListParams) (Page[InterestedUser], error) {
	page, err := listPage(ctx, s.pool, s.sb, interestTable, interestColumns,
		searchFilter(p.Search, "name", "email"),
		"created_at DESC", p, scanInterestedUser)
	if err != nil {
		return Page[InterestedUser]{}, fmt.Errorf("ListInterestedUsers: %w", err)
	}
	return page, nil
}

// DeleteInterestedUser removes a signup.
func (s *Store) DeleteInterestedUser(ctx context.Context, id uuid.UUID) error {
	if err := exec(ctx, s.pool, s.sb.Delete(interestTable).Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("DeleteInterestedUser %s: %w", id, err)
	}
	return nil
}
