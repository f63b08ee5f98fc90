package api

import (
	"net/http"
	"strings"

	"github.com/outreachhq/outreach-backend/internal/store"
)

type createSponsorInquiryRequest struct {
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Tier        string `json:"tier"`
	Message     string `json:"message"`
}

type updateSponsorInquiryRequest struct {
	Status store.InquiryStatus `json:"status"`
}

// handleCreateSponsorInquiry records a public sponsorship inquiry.
// POST /api/v1/sponsors/inquiries
func (s *Server) handleCreateSponsorInquiry(w http.ResponseWriter, r *http.Request) {
	var req createSponsorInquiryRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Company) == "" || strings.TrimSpace(req.ContactName) == "" {
		respondErr(w, http.StatusBadRequest, "company and contact_name are required")
		return
	}
	if !validEmail(req.Email) {
		respondErr(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	inq, err := s.q.CreateSponsorInquiry(r.Context(), store.SponsorInquiryInput{
		Company:     strings.TrimSpace(req.Company),
		ContactName: strings.TrimSpace(req.ContactName),
		Email:       strings.TrimSpace(req.Email),
		Tier:        req.Tier,
		Message:     req.Message,
	})
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}

	s.logger.Info("sponsor inquiry received",
		"inquiry_id", inq.ID,
		"company", inq.Company,
		logField(r),
	)
	respond(w, http.StatusCreated, inq)
}

// GET /api/v1/sponsors/inquiries
func (s *Server) handleListSponsorInquiries(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := s.q.ListSponsorInquiries(r.Context(), p)
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, page)
}

// PATCH /api/v1/sponsors/inquiries/{id}
func (s *Server) handleUpdateSponsorInquiry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req updateSponsorInquiryRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		respondErr(w, http.StatusBadRequest, "unknown status")
		return
	}

	inq, err := s.q.UpdateSponsorInquiryStatus(r.Context(), id, req.Status)
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, inq)
}
