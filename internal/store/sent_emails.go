package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SentEmail is the bookkeeping row for one delivered message.
type SentEmail struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"provider_id,omitempty"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	Status     string    `json:"status"`
	SentBy     string    `json:"sent_by,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

const sentEmailsTable = "sent_emails"

var sentEmailColumns = []string{"id", "provider_id", "from_addr", "to_addrs", "subject", "status", "sent_by", "sent_at"}

// Postgres caps bind parameters at 65535; 8 columns × 1000 rows stays well
// under that.
const sentEmailInsertChunk = 1000

func scanSentEmail(row rowScanner) (SentEmail, error) {
	var (
		e                  SentEmail
		providerID, sentBy sql.NullString
		to                 pq.StringArray
	)
	err := row.Scan(&e.ID, &providerID, &e.From, &to, &e.Subject, &e.Status, &sentBy, &e.SentAt)
	if err != nil {
		return SentEmail{}, err
	}
	e.ProviderID, e.SentBy, e.To = providerID.String, sentBy.String, []string(to)
	return e, nil
}

// RecordSentEmails stores dispatch records in a single transaction. Either
// every record is written or none is.
func (s *Store) RecordSentEmails(ctx context.Context, records []SentEmail) error {
	if len(records) == 0 {
		return nil
	}

	err := s.withTx(ctx, func(ctx context.Context, tx dbtx) error {
		for start := 0; start < len(records); start += sentEmailInsertChunk {
			end := min(start+sentEmailInsertChunk, len(records))

			q := s.sb.Insert(sentEmailsTable).Columns(sentEmailColumns...)
			for _, r := range records[start:end] {
				sentAt := r.SentAt
				if sentAt.IsZero() {
					sentAt = time.Now().UTC()
				}
				q = q.Values(r.ID, nullString(r.ProviderID), r.From, pq.Array(r.To), r.Subject, r.Status, nullString(r.SentBy), sentAt)
			}

			query, args, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("RecordSentEmails: %w", err)
	}
	return nil
}

// ListSentEmails returns a page of sent-email records, newest first. Search
// matches the subject.
func (s *Store) ListSentEmails(ctx context.Context, p ListParams) (Page[SentEmail], error) {
	page, err := listPage(ctx, s.pool, s.sb, sentEmailsTable, sentEmailColumns,
		searchFilter(p.Search, "subject"),
		"sent_at DESC", p, scanSentEmail)
	if err != nil {
		return Page[SentEmail]{}, fmt.Errorf("ListSentEmails: %w", err)
	}
	return page, nil
}
