package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// InquiryStatus tracks a sponsor inquiry.
type InquiryStatus string

const (
	InquiryOpen       InquiryStatus = "open"
	InquiryInProgress InquiryStatus = "in_progress"
	InquiryClosed     InquiryStatus = "closed"
)

// Valid reports whether s is a known status.
func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryOpen, InquiryInProgress, InquiryClosed:
		return true
	}
	return false
}

// SponsorInquiry is an inbound sponsorship request.
type SponsorInquiry struct {
	ID          uuid.UUID     `json:"id"`
	Company     string        `json:"company"`
	ContactName string        `json:"contact_name"`
	Email       string        `json:"email"`
	Tier        string        `json:"tier,omitempty"`
	Message     string        `json:"message,omitempty"`
	Status      InquiryStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SponsorInquiryInput holds a new inquiry.
type SponsorInquiryInput struct {
	Company     string
	ContactName string
	Email       string
	Tier        string
	Message     string
}

const sponsorTable = "sponsor_inquiries"

var sponsorColumns = []string{
	"id", "company", "contact_name", "email", "tier", "message", "status", "created_at", "updated_at",
}

func scanSponsorInquiry(row rowScanner) (SponsorInquiry, error) {
	var (
		i         SponsorInquiry
		tier, msg sql.NullString
	)
	err := row.Scan(&i.ID, &i.Company, &i.ContactName, &i.Email, &tier, &msg, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return SponsorInquiry{}, err
	}
	i.Tier, i.Message = tier.String, msg.String
	return i, nil
}

// CreateSponsorInquiry records a new inquiry in the open state.
func (s *Store) CreateSponsorInquiry(ctx context.Context, in SponsorInquiryInput) (SponsorInquiry, error) {
	q := s.sb.Insert(sponsorTable).
		Columns("id", "company", "contact_name", "email", "tier", "message", "status").
		Values(uuid.New(), in.Company, in.ContactName, in.Email, nullString(in.Tier), nullString(in.Message), InquiryOpen).
		Suffix(returning(sponsorColumns))

	i, err := getOne(ctx, s.pool, q, scanSponsorInquiry)
	if err != nil {
		return SponsorInquiry{}, fmt.Errorf("CreateSponsorInquiry: %w", err)
	}
	return i, nil
}

// ListSponsorInquiries returns a page of inquiries, newest first. Search
// matches company, contact name and email.
func (s *Store) ListSponsorInquiries(ctx context.Context, p ListParams) (Page[SponsorInquiry], error) {
	page, err := listPage(ctx, s.pool, s.sb, sponsorTable, sponsorColumns,
		searchFilter(p.Search, "company", "contact_name", "email"),
		"created_at DESC", p, scanSponsorInquiry)
	if err != nil {
		return Page[SponsorInquiry]{}, fmt.Errorf("ListSponsorInquiries: %w", err)
	}
	return page, nil
}

// UpdateSponsorInquiryStatus moves an inquiry to status.
func (s *Store) UpdateSponsorInquiryStatus(ctx context.Context, id uuid.UUID, status InquiryStatus) (SponsorInquiry, error) {
	q := s.sb.Update(sponsorTable).
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix(returning(sponsorColumns))

	i, err := getOne(ctx, s.pool, q, scanSponsorInquiry)
	if err != nil {
		return SponsorInquiry{}, fmt.Errorf("UpdateSponsorInquiryStatus %s: %w", id, err)
	}
	return i, nil
}
