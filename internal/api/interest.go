package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/outreachhq/outreach-backend/internal/store"
)

type createInterestedUserRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// handleCreateInterestedUser records a public signup.
// POST /api/v1/interested-users
func (s *Server) handleCreateInterestedUser(w http.ResponseWriter, r *http.Request) {
	var req createInterestedUserRequest
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

	u, err := s.q.CreateInterestedUser(r.Context(), store.InterestedUserInput{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Message: req.Message,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		respondErr(w, http.StatusConflict, "this email is already registered")
		return
	}
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

// GET /api/v1/interested-users
func (s *Server) handleListInterestedUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := s.q.ListInterestedUsers(r.Context(), p)
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, page)
}

// DELETE /api/v1/interested-users/{id}
func (s *Server) handleDeleteInterestedUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.q.DeleteInterestedUser(r.Context(), id); err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
