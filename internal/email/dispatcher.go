package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDispatch wraps every delivery failure surfaced by the Dispatcher.
	ErrDispatch = errors.New("email: dispatch failed")
	// ErrDispatchFailed is returned by SendBatch when no batch was delivered.
	ErrDispatchFailed = fmt.Errorf("%w: every batch failed", ErrDispatch)
)

// StatusDelivered is the status recorded for a message the provider accepted.
const StatusDelivered = "delivered"

// DispatchConfig tunes batching, retries and pacing.
type DispatchConfig struct {
	MaxBatchSize int
	// MaxRetries is the number of extra attempts per batch after the first.
	MaxRetries int
	// RetryDelay is the first backoff; each later retry doubles it.
	RetryDelay time.Duration
	// BatchDelay is the base pause between batches, multiplied by
	// ceil(batches/10) so large sends back off harder.
	BatchDelay time.Duration
	// DefaultFrom fills Message.From when it is empty.
	DefaultFrom string
}

// SentMessage is the record of one accepted message.
type SentMessage struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"provider_id"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	Status     string    `json:"status"`
	SentAt     time.Time `json:"sent_at"`
}

// BatchResult summarizes a SendBatch call. It is returned even when the call
// fails, so messages that did go out are never lost.
type BatchResult struct {
	Sent          []SentMessage `json:"sent"`
	FailedBatches int           `json:"failed_batch_count"`
	TotalBatches  int           `json:"total_batches"`
}

// Dispatcher sends messages through a Sender. It holds no mutable state and
// is safe for concurrent use.
type Dispatcher struct {
	sender Sender
	cfg    DispatchConfig
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSleep replaces the pause function. Tests use it to record delays
// instead of waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithClock replaces the time source used for SentAt.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(sender Sender, cfg DispatchConfig, log *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	d := &Dispatcher{
		sender: sender,
		cfg:    cfg,
		log:    log,
		sleep:  sleepCtx,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers a single message with no retry.
func (d *Dispatcher) Send(ctx context.Context, m Message) (SentMessage, error) {
	m = d.withSender(m)
	providerID, err := d.sender.Send(ctx, m)
	if err != nil {
		return SentMessage{}, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	return d.record(m, providerID), nil
}

// SendBatch delivers msgs in consecutive batches of at most MaxBatchSize.
// A failing batch is retried with exponential backoff; once its retries are
// spent it is counted in FailedBatches and the next batch is tried.
//
// The error is ErrDispatchFailed when every batch failed without delivering
// a single message, or wraps the context error when ctx ends first. The
// BatchResult is valid in both cases.
func (d *Dispatcher) SendBatch(ctx context.Context, msgs []Message) (BatchResult, error) {
	batches := chunk(msgs, d.cfg.MaxBatchSize)
	res := BatchResult{Sent: []SentMessage{}, TotalBatches: len(batches)}
	if len(batches) == 0 {
		return res, nil
	}

	pace := d.cfg.BatchDelay * time.Duration((len(batches)+9)/10)

	for i, batch := range batches {
		if i > 0 && pace > 0 {
			if err := d.sleep(ctx, pace); err != nil {
				return res, d.interrupted(i, len(batches), err)
			}
		}

		for j := range batch {
			batch[j] = d.withSender(batch[j])
		}

		sent, err := d.sendWithRetry(ctx, i, batch)
		res.Sent = append(res.Sent, sent...)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, d.interrupted(i, len(batches), ctxErr)
			}
			res.FailedBatches++
			d.log.Warn("email batch failed",
				"batch", i+1,
				"batches", len(batches),
				"messages", len(batch),
				"delivered", len(sent),
				"error", err,
			)
		}
	}

	d.log.Info("email dispatch finished",
		"sent", len(res.Sent),
		"failed_batches", res.FailedBatches,
		"total_batches", res.TotalBatches,
	)

	if res.FailedBatches == res.TotalBatches && len(res.Sent) == 0 {
		return res, ErrDispatchFailed
	}
	return res, nil
}

// sendWithRetry makes up to 1+MaxRetries attempts at one batch. Retry n
// waits RetryDelay * 2^(n-1). Messages accepted by a partially failed
// attempt are recorded and only the rest are retried. The returned slice
// holds every accepted message, including when err is non-nil.
func (d *Dispatcher) sendWithRetry(ctx context.Context, index int, batch []Message) ([]SentMessage, error) {
	sent := []SentMessage{}
	remaining := batch
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := d.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			d.log.Debug("retrying email batch",
				"batch", index+1,
				"attempt", attempt+1,
				"remaining", len(remaining),
				"wait", wait,
			)
			if err := d.sleep(ctx, wait); err != nil {
				return sent, err
			}
		}

		ids, err := d.sender.SendBatch(ctx, remaining)
		if err == nil {
			return append(sent, d.recordAll(remaining, ids)...), nil
		}
		lastErr = err

		var partial *PartialSendError
		if errors.As(err, &partial) {
			n := min(len(partial.IDs), len(remaining))
			sent = append(sent, d.recordAll(remaining[:n], partial.IDs)...)
			remaining = remaining[n:]
			if len(remaining) == 0 {
				return sent, nil
			}
		}
	}
	return sent, lastErr
}

// recordAll records msgs as accepted. A missing provider ID is left empty.
func (d *Dispatcher) recordAll(msgs []Message, ids []string) []SentMessage {
	out := make([]SentMessage, len(msgs))
	for j, m := range msgs {
		var providerID string
		if j < len(ids) {
			providerID = ids[j]
		}
		out[j] = d.record(m, providerID)
	}
	return out
}

func (d *Dispatcher) interrupted(done, total int, err error) error {
	return fmt.Errorf("email: dispatch interrupted after %d of %d batches: %w", done, total, err)
}

func (d *Dispatcher) withSender(m Message) Message {
	if m.From == "" {
		m.From = d.cfg.DefaultFrom
	}
	return m
}

func (d *Dispatcher) record(m Message, providerID string) SentMessage {
	return SentMessage{
		ID:         uuid.New(),
		ProviderID: providerID,
		From:       m.From,
		To:         m.To,
		Subject:    m.Subject,
		Status:     StatusDelivered,
		SentAt:     d.now(),
	}
}

// chunk splits msgs into consecutive slices of at most size, copying so the
// caller's slice is never modified.
func chunk(msgs []Message, size int) [][]Message {
	var out [][]Message
	for start := 0; start < len(msgs); start += size {
		end := min(start+size, len(msgs))
		out = append(out, append([]Message(nil), msgs[start:end]...))
	}
	return out
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
