package api

import (
	"net/http"
	"strings"

	"github.com/outreachhq/outreach-backend/internal/store"
)

type createTeamMemberRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	RoleTitle string `json:"role_title"`
	Bio       string `json:"bio"`
	PhotoURL  string `json:"photo_url"`
	SortOrder int    `json:"sort_order"`
}

type updateTeamMemberRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	RoleTitle *string `json:"role_title"`
	Bio       *string `json:"bio"`
	PhotoURL  *string `json:"photo_url"`
	SortOrder *int    `json:"sort_order"`
}

// handleListTeam returns the public roster.
// GET /api/v1/team
func (s *Server) handleListTeam(w http.ResponseWriter, r *http.Request) {
	members, err := s.q.ListTeamMembers(r.Context())
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"items": members})
}

// POST /api/v1/team
func (s *Server) handleCreateTeamMember(w http.ResponseWriter, r *http.Request) {
	var req createTeamMemberRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.RoleTitle) == "" {
		respondErr(w, http.StatusBadRequest, "name and role_title are required")
		return
	}
	if req.Email != "" && !validEmail(req.Email) {
		respondErr(w, http.StatusBadRequest, "invalid email")
		return
	}

	m, err := s.q.CreateTeamMember(r.Context(), store.TeamMemberInput{
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		RoleTitle: strings.TrimSpace(req.RoleTitle),
		Bio:       req.Bio,
		PhotoURL:  req.PhotoURL,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, m)
}

// PATCH /api/v1/team/{id}
func (s *Server) handleUpdateTeamMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req updateTeamMemberRequest
	if !decode(w, r, &req) {
		return
	}
	if (req.Name != nil && strings.TrimSpace(*req.Name) == "") ||
		(req.RoleTitle != nil && strings.TrimSpace(*req.RoleTitle) == "") {
		respondErr(w, http.StatusBadRequest, "name and role_title cannot be blank")
		return
	}
	if req.Email != nil && *req.Email != "" && !validEmail(*req.Email) {
		respondErr(w, http.StatusBadRequest, "invalid email")
		return
	}

	m, err := s.q.UpdateTeamMember(r.Context(), id, store.TeamMemberPatch(req))
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, m)
}

// DELETE /api/v1/team/{id}
func (s *Server) handleDeleteTeamMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.q.DeleteTeamMember(r.Context(), id); err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
