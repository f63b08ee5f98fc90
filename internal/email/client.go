// Package email sends outreach mail. Sender is the provider boundary and has
// a Resend-backed implementation; Dispatcher layers batching, retries and
// pacing on top of any Sender.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Attachment is a file sent with a message. Content is raw bytes; the
// provider client handles encoding.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// Message is one outbound email. From may be empty, in which case the
// configured default sender is used.
type Message struct {
	From        string       `json:"from,omitempty"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	Bcc         []string     `json:"bcc,omitempty"`
	ReplyTo     []string     `json:"reply_to,omitempty"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ErrInvalidMessage is returned by Message.Validate.
var ErrInvalidMessage = errors.New("email: invalid message")

// Validate checks the fields every provider requires.
func (m Message) Validate() error {
	var errs []error
	if len(m.To) == 0 {
		errs = append(errs, errors.New("at least one recipient is required"))
	}
	for _, list := range [][]string{m.To, m.Cc, m.Bcc, m.ReplyTo} {
		for _, addr := range list {
			if _, err := mail.ParseAddress(addr); err != nil {
				errs = append(errs, fmt.Errorf("bad address %q", addr))
			}
		}
	}
	if m.From != "" {
		if _, err := mail.ParseAddress(m.From); err != nil {
			errs = append(errs, fmt.Errorf("bad sender %q", m.From))
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		errs = append(errs, errors.New("subject is required"))
	}
	if m.HTML == "" && m.Text == "" {
		errs = append(errs, errors.New("html or text body is required"))
	}
	for _, a := range m.Attachments {
		if a.Filename == "" {
			errs = append(errs, errors.New("attachment filename is required"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, errors.Join(errs...))
	}
	return nil
}

// Sender delivers mail through a provider. Both methods return provider
// message IDs; SendBatch returns them in input order. When SendBatch
// delivers only a prefix of msgs before failing, the error is a
// *PartialSendError carrying the IDs of that prefix.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
	SendBatch(ctx context.Context, msgs []Message) ([]string, error)
}

// PartialSendError reports a batch that stopped part way. IDs belong to
// msgs[:len(IDs)]; those messages were accepted and must not be sent again.
type PartialSendError struct {
	IDs []string
	Err error
}

func (e *PartialSendError) Error() string {
	return fmt.Sprintf("email: %d messages sent before failure: %v", len(e.IDs), e.Err)
}

func (e *PartialSendError) Unwrap() error { return e.Err }
