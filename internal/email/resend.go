package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ResendConfig configures the Resend client.
type ResendConfig struct {
	APIKey   string
	BaseURL  string // e.g. "https://api.resend.com"
	FromAddr string // e.g. "outreach@example.org"
	FromName string // e.g. "Outreach Team"
	Timeout  time.Duration
}

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey      string
	defaultFrom string
	baseURL     string
	httpClient  *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(cfg ResendConfig) Sender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &resendClient{
		apiKey:      cfg.APIKey,
		defaultFrom: FormatSender(cfg.FromName, cfg.FromAddr),
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FormatSender renders "Name <addr>", or just addr when name is empty.
func FormatSender(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"` // base64
	ContentType string `json:"content_type,omitempty"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Cc          []string           `json:"cc,omitempty"`
	Bcc         []string           `json:"bcc,omitempty"`
	ReplyTo     []string           `json:"reply_to,omitempty"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

// resendError appears either at the top level of an error response or
// nested under "error", depending on the endpoint.
type resendError struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type resendResponse struct {
	ID    string       `json:"id"`
	Error *resendError `json:"error"`
	resendError
}

type resendBatchResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *resendError `json:"error"`
	resendError
}

func (c *resendClient) toRequest(m Message) resendRequest {
	from := m.From
	if from == "" {
		from = c.defaultFrom
	}
	req := resendRequest{
		From:    from,
		To:      m.To,
		Cc:      m.Cc,
		Bcc:     m.Bcc,
		ReplyTo: m.ReplyTo,
		Subject: m.Subject,
		HTML:    m.HTML,
		Text:    m.Text,
	}
	for _, a := range m.Attachments {
		req.Attachments = append(req.Attachments, resendAttachment{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}
	return req
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// Send delivers one message and returns the Resend message ID.
func (c *resendClient) Send(ctx context.Context, m Message) (string, error) {
	var parsed resendResponse
	if err := c.post(ctx, "/emails", c.toRequest(m), &parsed); err != nil {
		return "", err
	}
	if e := firstError(parsed.Error, parsed.resendError); e != nil {
		return "", fmt.Errorf("email: Resend error %s: %s", e.Name, e.Message)
	}
	return parsed.ID, nil
}

// SendBatch delivers msgs in one request. The batch endpoint does not accept
// attachments, so a batch carrying any is sent one message at a time.
func (c *resendClient) SendBatch(ctx context.Context, msgs []Message) ([]string, error) {
	if len(msgs) == 0 {
		return []string{}, nil
	}
	for _, m := range msgs {
		if len(m.Attachments) > 0 {
			return c.sendEach(ctx, msgs)
		}
	}

	reqs := make([]resendRequest, len(msgs))
	for i, m := range msgs {
		reqs[i] = c.toRequest(m)
	}

	var parsed resendBatchResponse
	if err := c.post(ctx, "/emails/batch", reqs, &parsed); err != nil {
		return nil, err
	}
	if e := firstError(parsed.Error, parsed.resendError); e != nil {
		return nil, fmt.Errorf("email: Resend error %s: %s", e.Name, e.Message)
	}

	ids := make([]string, len(parsed.Data))
	for i, d := range parsed.Data {
		ids[i] = d.ID
	}
	return ids, nil
}

// sendEach stops at the first failure. Messages already accepted are
// reported through *PartialSendError so the caller does not resend them.
func (c *resendClient) sendEach(ctx context.Context, msgs []Message) ([]string, error) {
	ids := make([]string, 0, len(msgs))
	for i, m := range msgs {
		id, err := c.Send(ctx, m)
		if err != nil {
			err = fmt.Errorf("message %d of %d: %w", i+1, len(msgs), err)
			if len(ids) > 0 {
				return ids, &PartialSendError{IDs: ids, Err: err}
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func firstError(nested *resendError, top resendError) *resendError {
	if nested != nil {
		return nested
	}
	if top.Name != "" || top.Message != "" {
		return &top
	}
	return nil
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) post(ctx context.Context, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e resendError
		if json.Unmarshal(respBytes, &e) == nil && e.Message != "" {
			return fmt.Errorf("email: Resend error %s (status %d): %s", e.Name, resp.StatusCode, e.Message)
		}
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}
