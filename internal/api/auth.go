package api

import (
	"net/http"
	"strings"

	"github.com/outreachhq/outreach-backend/internal/auth"
	"github.com/outreachhq/outreach-backend/internal/config"
)

// handleMe returns the caller's claims and resolved roles.
// GET /api/v1/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondAuthErr(w, auth.ErrUnauthorized)
		return
	}
	respond(w, http.StatusOK, id)
}

type decodeTokenRequest struct {
	Token string `json:"token"`
}

// handleDecodeToken parses a token without verifying it, for debugging
// client integrations. Not available in production.
// POST /api/v1/auth/decode
func (s *Server) handleDecodeToken(w http.ResponseWriter, r *http.Request) {
	if s.env(r) == config.Production {
		respondErr(w, http.StatusNotFound, "not found")
		return
	}

	var req decodeTokenRequest
	if !decode(w, r, &req) {
		return
	}

	claims := auth.Decode(strings.TrimPrefix(strings.TrimSpace(req.Token), "Bearer "))
	if claims == nil {
		respondErr(w, http.StatusBadRequest, "malformed token")
		return
	}
	respond(w, http.StatusOK, claims)
}
