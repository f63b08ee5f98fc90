package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ContactStatus tracks where a contact is in the outreach pipeline.
type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactContacted ContactStatus = "contacted"
	ContactResponded ContactStatus = "responded"
	ContactClosed    ContactStatus = "closed"
)

// Valid reports whether s is a known status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactContacted, ContactResponded, ContactClosed:
		return true
	}
	return false
}

// Contact is an outreach target.
type Contact struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Organization string        `json:"organization,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Status       ContactStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ContactInput holds the fields for a new contact.
type ContactInput struct {
	Name         string
	Email        string
	Organization string
	Phone        string
	Notes        string
	Status       ContactStatus // empty → new
}

// ContactPatch holds optional updates; nil fields are left unchanged.
type ContactPatch struct {
	Name         *string
	Email        *string
	Organization *string
	Phone        *string
	Notes        *string
	Status       *ContactStatus
}

const contactsTable = "contacts"

var contactColumns = []string{
	"id", "name", "email", "organization", "phone", "notes", "status", "created_at", "updated_at",
}

func scanContact(row rowScanner) (Contact, error) {
	var (
		c                 Contact
		org, phone, notes sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &org, &phone, &notes, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Contact{}, err
	}
	c.Organization, c.Phone, c.Notes = org.String, phone.String, notes.String
	return c, nil
}

// ListContacts returns a page of contacts, newest first. Search matches name,
// email and organization.
func (s *Store) ListContacts(ctx context.Context, p ListParams) (Page[Contact], error) {
	page, err := listPage(ctx, s.pool, s.sb, contactsTable, contactColumns,
		searchFilter(p.Search, "name", "email", "organization"),
		"created_at DESC", p, scanContact)
	if err != nil {
		return Page[Contact]{}, fmt.Errorf("ListContacts: %w", err)
	}
	return page, nil
}

// GetContact returns one contact by ID.
func (s *Store) GetContact(ctx context.Context, id uuid.UUID) (Contact, error) {
	q := s.sb.Select(contactColumns...).From(contactsTable).Where(sq.Eq{"id": id})
	c, err := getOne(ctx, s.pool, q, scanContact)
	if err != nil {
		return Contact{}, fmt.Errorf("GetContact %s: %w", id, err)
	}
	return c, nil
}

// CreateContact inserts a contact and returns the stored row.
func (s *Store) CreateContact(ctx context.Context, in ContactInput) (Contact, error) {
	status := in.Status
	if status == "" {
		status = ContactNew
	}
	q := s.sb.Insert(contactsTable).
		Columns("id", "name", "email", "organization", "phone", "notes", "status").
		Values(uuid.New(), in.Name, in.Email, nullString(in.Organization), nullString(in.Phone), nullString(in.Notes), status).
		Suffix(returning(contactColumns))

	c, err := getOne(ctx, s.pool, q, scanContact)
	if err != nil {
		return Contact{}, fmt.Errorf("CreateContact: %w", err)
	}
	return c, nil
}

// UpdateContact applies p to the contact and returns the updated row.
func (s *Store) UpdateContact(ctx context.Context, id uuid.UUID, p ContactPatch) (Contact, error) {
	set := map[string]any{}
	setString(set, "name", p.Name)
	setString(set, "email", p.Email)
	setNullString(set, "organization", p.Organization)
	setNullString(set, "phone", p.Phone)
	setNullString(set, "notes", p.Notes)
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if len(set) == 0 {
		return s.GetContact(ctx, id)
	}
	set["updated_at"] = sq.Expr("now()")

	q := s.sb.Update(contactsTable).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix(returning(contactColumns))

	c, err := getOne(ctx, s.pool, q, scanContact)
	if err != nil {
		return Contact{}, fmt.Errorf("UpdateContact %s: %w", id, err)
	}
	return c, nil
}

// DeleteContact removes a contact. Returns ErrNotFound if it did not exist.
func (s *Store) DeleteContact(ctx context.Context, id uuid.UUID) error {
	if err := exec(ctx, s.pool, s.sb.Delete(contactsTable).Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("DeleteContact %s: %w", id, err)
	}
	return nil
}
