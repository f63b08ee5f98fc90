package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/outreachhq/outreach-backend/internal/auth"
	"github.com/outreachhq/outreach-backend/internal/email"
	"github.com/outreachhq/outreach-backend/internal/store"
)

// maxBatchMessages bounds one send-batch request.
const maxBatchMessages = 5000

type sendBatchRequest struct {
	Messages []email.Message `json:"messages"`
}

type sendBatchResponse struct {
	email.BatchResult
	Error string `json:"error,omitempty"`
}

// handleSendEmail sends one message immediately, without retry.
// POST /api/v1/emails/send
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var msg email.Message
	if !decode(w, r, &msg) {
		return
	}
	if err := msg.Validate(); err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := s.mailer.Send(r.Context(), msg)
	if err != nil {
		s.logger.Error("email send failed", "error", err, logField(r))
		respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordSent(r, []email.SentMessage{sent})
	respond(w, http.StatusOK, sent)
}

// handleSendBatch dispatches many messages in paced, retried batches.
// 200 when everything went out, 207 when some batches failed, 500 when none
// did. The body always carries whatever was sent.
// POST /api/v1/emails/send-batch
func (s *Server) handleSendBatch(w http.ResponseWriter, r *http.Request) {
	var req sendBatchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		respondErr(w, http.StatusBadRequest, "messages is required")
		return
	}
	if len(req.Messages) > maxBatchMessages {
		respondErr(w, http.StatusBadRequest, fmt.Sprintf("at most %d messages per request", maxBatchMessages))
		return
	}
	for i, m := range req.Messages {
		if err := m.Validate(); err != nil {
			respondErr(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: %v", i, err))
			return
		}
	}

	res, err := s.mailer.SendBatch(r.Context(), req.Messages)
	s.recordSent(r, res.Sent)

	body := sendBatchResponse{BatchResult: res}
	switch {
	case errors.Is(err, email.ErrDispatchFailed):
		s.logger.Error("email dispatch failed", "error", err, "batches", res.TotalBatches, logField(r))
		body.Error = "every batch failed"
		respond(w, http.StatusInternalServerError, body)
	case err != nil:
		s.logger.Warn("email dispatch interrupted", "error", err, "sent", len(res.Sent), logField(r))
		body.Error = "dispatch interrupted"
		respond(w, http.StatusGatewayTimeout, body)
	case res.FailedBatches > 0:
		respond(w, http.StatusMultiStatus, body)
	default:
		respond(w, http.StatusOK, body)
	}
}

// GET /api/v1/emails/sent
func (s *Server) handleListSentEmails(w http.ResponseWriter, r *http.Request) {
	p, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := s.q.ListSentEmails(r.Context(), p)
	if err != nil {
		s.respondStoreErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, page)
}

// recordSent writes the sent log. The mail has already gone out, so a
// failure here is logged and never surfaced to the caller. The write uses a
// context detached from the request so a client disconnect does not drop it.
func (s *Server) recordSent(r *http.Request, sent []email.SentMessage) {
	if len(sent) == 0 {
		return
	}

	var sentBy string
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		sentBy = id.Subject
		if sentBy == "" {
			sentBy = id.Email
		}
	}

	records := make([]store.SentEmail, len(sent))
	for i, m := range sent {
		records[i] = store.SentEmail{
			ID:         m.ID,
			ProviderID: m.ProviderID,
			From:       m.From,
			To:         m.To,
			Subject:    m.Subject,
			Status:     m.Status,
			SentBy:     sentBy,
			SentAt:     m.SentAt,
		}
	}

	if err := s.q.RecordSentEmails(context.WithoutCancel(r.Context()), records); err != nil {
		s.logger.Error("record sent emails failed",
			"error", err,
			"count", len(records),
			logField(r),
		)
	}
}
