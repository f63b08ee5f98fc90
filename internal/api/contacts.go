package api

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/outreachhq/outreach-backend/internal/store"
)

type createContactRequest struct {
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Organization string              `json:"organization"`
	Phone        string              `json:"phone"`
	Notes        string              `json:"notes"`
	Status       store.ContactStatus `json:"status"`
}

type updateContactRequest struct {
	Name         *string              `json:"name"`
	Email        *string              `json:"email"`
	Organization *string              `json:"organization"`
	Phone        *string              `json:"phone"`
	Notes        *string              `json:"notes"`
	Status       *store.ContactStatus `json:"status"`
}

// handleListContacts returns a page of contacts.
// GET /api/v1/contacts?limit=&offset=&q=
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := s.q.ListContacts(r.Context(), p)
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, page)
}

// GET /api/v1/contacts/{id}
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := s.q.GetContact(r.Context(), id)
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// POST /api/v1/contacts
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req createContactRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondErr(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validEmail(req.Email) {
		respondErr(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		respondErr(w, http.StatusBadRequest, "unknown status")
		return
	}

	c, err := s.q.CreateContact(r.Context(), store.ContactInput{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Organization: req.Organization,
		Phone:        req.Phone,
		Notes:        req.Notes,
		Status:       req.Status,
	})
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

// PATCH /api/v1/contacts/{id}
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req updateContactRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		respondErr(w, http.StatusBadRequest, "name cannot be blank")
		return
	}
	if req.Email != nil && !validEmail(*req.Email) {
		respondErr(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		respondErr(w, http.StatusBadRequest, "unknown status")
		return
	}

	c, err := s.q.UpdateContact(r.Context(), id, store.ContactPatch(req))
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// DELETE /api/v1/contacts/{id}
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.q.DeleteContact(r.Context(), id); err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validEmail reports whether s is a bare RFC 5322 address.
func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}
