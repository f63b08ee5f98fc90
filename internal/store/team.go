package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// TeamMember is one entry on the public team roster.
type TeamMember struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	RoleTitle string    `json:"role_title"`
	Bio       string    `json:"bio,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamMemberInput holds the fields for a new roster entry.
type TeamMemberInput struct {
	Name      string
	Email     string
	RoleTitle string
	Bio       string
	PhotoURL  string
	SortOrder int
}

// TeamMemberPatch holds optional updates; nil fields are left unchanged.
type TeamMemberPatch struct {
	Name      *string
	Email     *string
	RoleTitle *string
	Bio       *string
	PhotoURL  *string
	SortOrder *int
}

const teamTable = "team_members"

var teamColumns = []string{
	"id", "name", "email", "role_title", "bio", "photo_url", "sort_order", "created_at", "updated_at",
}

func scanTeamMember(row rowScanner) (TeamMember, error) {
	var (
		m                    TeamMember
		email, bio, photoURL sql.NullString
	)
	err := row.Scan(&m.ID, &m.Name, &email, &m.RoleTitle, &bio, &photoURL, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return TeamMember{}, err
	}
	m.Email, m.Bio, m.PhotoURL = email.String, bio.String, photoURL.String
	return m, nil
}

// ListTeamMembers returns the whole roster in display order. The roster is
// small, so it is not paginated.
func (s *Store) ListTeamMembers(ctx context.Context) ([]TeamMember, error) {
	q := s.sb.Select(teamColumns...).From(teamTable).OrderBy("sort_order ASC", "name ASC")
	members, err := getMany(ctx, s.pool, q, scanTeamMember)
	if err != nil {
		return nil, fmt.Errorf("ListTeamMembers: %w", err)
	}
	return members, nil
}

// CreateTeamMember inserts a roster entry.
func (s *Store) CreateTeamMember(ctx context.Context, in TeamMemberInput) (TeamMember, error) {
	q := s.sb.Insert(teamTable).
		Columns("id", "name", "email", "role_title", "bio", "photo_url", "sort_order").
		Values(uuid.New(), in.Name, nullString(in.Email), in.RoleTitle, nullString(in.Bio), nullString(in.PhotoURL), in.SortOrder).
		Suffix(returning(teamColumns))

	m, err := getOne(ctx, s.pool, q, scanTeamMember)
	if err != nil {
		return TeamMember{}, fmt.Errorf("CreateTeamMember: %w", err)
	}
	return m, nil
}

// UpdateTeamMember applies p and returns the updated entry.
func (s *Store) UpdateTeamMember(ctx context.Context, id uuid.UUID, p TeamMemberPatch) (TeamMember, error) {
	set := map[string]any{}
	setString(set, "name", p.Name)
	setNullString(set, "email", p.Email)
	setString(set, "role_title", p.RoleTitle)
	setNullString(set, "bio", p.Bio)
	setNullString(set, "photo_url", p.PhotoURL)
	if p.SortOrder != nil {
		set["sort_order"] = *p.SortOrder
	}

	if len(set) == 0 {
		q := s.sb.Select(teamColumns...).From(teamTable).Where(sq.Eq{"id": id})
		m, err := getOne(ctx, s.pool, q, scanTeamMember)
		if err != nil {
			return TeamMember{}, fmt.Errorf("UpdateTeamMember %s: %w", id, err)
		}
		return m, nil
	}
	set["updated_at"] = sq.Expr("now()")

	q := s.sb.Update(teamTable).SetMap(set).Where(sq.Eq{"id": id}).Suffix(returning(teamColumns))
	m, err := getOne(ctx, s.pool, q, scanTeamMember)
	if err != nil {
		return TeamMember{}, fmt.Errorf("UpdateTeamMember %s: %w", id, err)
	}
	return m, nil
}

// DeleteTeamMember removes a roster entry.
func (s *Store) DeleteTeamMember(ctx context.Context, id uuid.UUID) error {
	if err := exec(ctx, s.pool, s.sb.Delete(teamTable).Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("DeleteTeamMember %s: %w", id, err)
	}
	return nil
}
