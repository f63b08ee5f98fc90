package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

var createdAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func contactRows() *sqlmock.Rows {
	return sqlmock.NewRows(contactColumns)
}

// ─── ACCOUNTS ─────────────────────────────────────────────────────────────────

func TestFindAccount_ByUserID(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 LIMIT 1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(id.String(), "user-1", "ada@example.com", []byte(`["admin"]`), createdAt))

	a, err := st.FindAccount(context.Background(), AccountByUserID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "user-1", a.UserID)
	assert.Equal(t, "ada@example.com", a.Email)
	assert.JSONEq(t, `["admin"]`, string(a.Roles))
}

func TestFindAccount_ByEmailNullRoles(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE email = \$1 LIMIT 1`).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(uuid.NewString(), nil, "ada@example.com", nil, createdAt))

	a, err := st.FindAccount(context.Background(), AccountByEmail, "ada@example.com")
	require.NoError(t, err)
	assert.Empty(t, a.UserID)
	assert.Nil(t, a.Roles)
}

func TestFindAccount_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := st.FindAccount(context.Background(), AccountByUserID, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindAccount_UnsupportedKey(t *testing.T) {
	st, _ := newMockStore(t)

	_, err := st.FindAccount(context.Background(), AccountKey("roles"), "x")
	assert.ErrorIs(t, err, ErrInvalid)
}

// ─── CONTACTS ─────────────────────────────────────────────────────────────────

func TestCreateContact_DefaultsToNew(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO contacts (id,name,email,organization,phone,notes,status) VALUES")).
		WithArgs(sqlmock.AnyArg(), "Ada", "ada@example.com", "Analytical Engines", nil, nil, "new").
		WillReturnRows(contactRows().
			AddRow(id.String(), "Ada", "ada@example.com", "Analytical Engines", nil, nil, "new", createdAt, createdAt))

	c, err := st.CreateContact(context.Background(), ContactInput{
		Name:         "Ada",
		Email:        "ada@example.com",
		Organization: "Analytical Engines",
		Phone:        "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, ContactNew, c.Status)
	assert.Empty(t, c.Phone)
}

func TestGetContact_NotFound(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM contacts WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(contactRows())

	_, err := st.GetContact(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateContact_SetsOnlyPatchedColumns(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()
	name := "Ada Lovelace"
	status := ContactResponded

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE contacts SET name = $1, status = $2, updated_at = now() WHERE id = $3 RETURNING")).
		WithArgs("Ada Lovelace", "responded", id.String()).
		WillReturnRows(contactRows().
			AddRow(id.String(), name, "ada@example.com", nil, nil, nil, "responded", createdAt, createdAt))

	c, err := st.UpdateContact(context.Background(), id, ContactPatch{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, name, c.Name)
	assert.Equal(t, ContactResponded, c.Status)
}

func TestUpdateContact_EmptyPatchReads(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM contacts WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(contactRows().
			AddRow(id.String(), "Ada", "ada@example.com", nil, nil, nil, "new", createdAt, createdAt))

	c, err := st.UpdateContact(context.Background(), id, ContactPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Ada", c.Name)
}

func TestDeleteContact_NotFound(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contacts WHERE id = $1")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.DeleteContact(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListContacts_SearchAndPaging(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()
	pattern := `%ada\_l%`

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM contacts WHERE (name ILIKE $1 OR email ILIKE $2 OR organization ILIKE $3)")).
		WithArgs(pattern, pattern, pattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 200 OFFSET 0")).
		WithArgs(pattern, pattern, pattern).
		WillReturnRows(contactRows().
			AddRow(id.String(), "Ada", "ada@example.com", nil, nil, nil, "new", createdAt, createdAt))

	page, err := st.ListContacts(context.Background(), ListParams{Limit: 1000, Offset: -4, Search: " ada_l "})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 200, page.Limit)
	assert.Equal(t, 0, page.Offset)
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ID)
}

func TestListContacts_EmptyIsNonNil(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM contacts")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WillReturnRows(contactRows())

	page, err := st.ListContacts(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

// ─── INTERESTED USERS ─────────────────────────────────────────────────────────

func TestCreateInterestedUser_DuplicateEmail(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO interested_users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := st.CreateInterestedUser(context.Background(), InterestedUserInput{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

// ─── SPONSOR INQUIRIES ────────────────────────────────────────────────────────

func TestUpdateSponsorInquiryStatus_CheckViolation(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sponsor_inquiries SET status = $1")).
		WillReturnError(&pq.Error{Code: "23514"})

	_, err := st.UpdateSponsorInquiryStatus(context.Background(), uuid.New(), InquiryStatus("bogus"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestInquiryStatus_Valid(t *testing.T) {
	assert.True(t, InquiryInProgress.Valid())
	assert.False(t, InquiryStatus("pending").Valid())
	assert.True(t, ContactClosed.Valid())
	assert.False(t, ContactStatus("").Valid())
}

// ─── SENT EMAILS ──────────────────────────────────────────────────────────────

func TestRecordSentEmails_CommitsInOneTransaction(t *testing.T) {
	st, mock := newMockStore(t)
	records := []SentEmail{
		{ID: uuid.New(), ProviderID: "re_1", From: "team@example.com", To: []string{"a@example.com"}, Subject: "Hi", Status: "delivered"},
		{ID: uuid.New(), ProviderID: "re_2", From: "team@example.com", To: []string{"b@example.com", "c@example.com"}, Subject: "Hi", Status: "delivered"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sent_emails (id,provider_id,from_addr,to_addrs,subject,status,sent_by,sent_at) VALUES")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, st.RecordSentEmails(context.Background(), records))
}

func TestRecordSentEmails_RollsBackOnError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sent_emails")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := st.RecordSentEmails(context.Background(), []SentEmail{{ID: uuid.New(), From: "f", To: []string{"t"}, Subject: "s", Status: "delivered"}})
	assert.ErrorContains(t, err, "connection reset")
}

func TestRecordSentEmails_EmptyIsNoop(t *testing.T) {
	st, _ := newMockStore(t)
	assert.NoError(t, st.RecordSentEmails(context.Background(), nil))
}

func TestListSentEmails_ScansRecipients(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM sent_emails")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sent_at DESC")).
		WillReturnRows(sqlmock.NewRows(sentEmailColumns).
			AddRow(uuid.NewString(), "re_1", "team@example.com", []byte(`{a@example.com,b@example.com}`), "Hi", "delivered", nil, createdAt))

	page, err := st.ListSentEmails(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, page.Items[0].To)
	assert.Empty(t, page.Items[0].SentBy)
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func TestMapError_ContextPassesThrough(t *testing.T) {
	err := mapError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSearchFilter_Blank(t *testing.T) {
	assert.Nil(t, searchFilter("   ", "name"))
}
