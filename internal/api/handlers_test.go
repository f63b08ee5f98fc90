package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachhq/outreach-backend/internal/api"
	"github.com/outreachhq/outreach-backend/internal/auth"
	"github.com/outreachhq/outreach-backend/internal/config"
	"github.com/outreachhq/outreach-backend/internal/email"
	"github.com/outreachhq/outreach-backend/internal/store"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubQuerier satisfies store.Querier with in-memory state.
// Fields may be set per-test to control behaviour.
type stubQuerier struct {
	store.Querier // embedded to panic on unimplemented methods

	mu        sync.Mutex
	roles     map[string]string // user_id → raw roles column
	contacts  map[uuid.UUID]store.Contact
	team      []store.TeamMember
	interest  map[string]store.InterestedUser // keyed by email
	inquiries map[uuid.UUID]store.SponsorInquiry
	sent      []store.SentEmail
	pingErr   error
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{
		roles:     make(map[string]string),
		contacts:  make(map[uuid.UUID]store.Contact),
		interest:  make(map[string]store.InterestedUser),
		inquiries: make(map[uuid.UUID]store.SponsorInquiry),
	}
}

func (q *stubQuerier) Ping(context.Context) error { return q.pingErr }

func (q *stubQuerier) FindAccount(_ context.Context, key store.AccountKey, value string) (store.Account, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	raw, ok := q.roles[value]
	if key != store.AccountByUserID || !ok {
		return store.Account{}, store.ErrNotFound
	}
	return store.Account{ID: uuid.New(), UserID: value, Roles: json.RawMessage(raw)}, nil
}

func (q *stubQuerier) ListContacts(_ context.Context, p store.ListParams) (store.Page[store.Contact], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := []store.Contact{}
	for _, c := range q.contacts {
		items = append(items, c)
	}
	return store.Page[store.Contact]{Items: items, Total: int64(len(items)), Limit: p.Limit, Offset: p.Offset}, nil
}

func (q *stubQuerier) GetContact(_ context.Context, id uuid.UUID) (store.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.contacts[id]
	if !ok {
		return store.Contact{}, store.ErrNotFound
	}
	return c, nil
}

func (q *stubQuerier) CreateContact(_ context.Context, in store.ContactInput) (store.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status := in.Status
	if status == "" {
		status = store.ContactNew
	}
	c := store.Contact{
		ID: uuid.New(), Name: in.Name, Email: in.Email, Organization: in.Organization,
		Status: status, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	q.contacts[c.ID] = c
	return c, nil
}

func (q *stubQuerier) UpdateContact(_ context.Context, id uuid.UUID, p store.ContactPatch) (store.Contact, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.contacts[id]
	if !ok {
		return store.Contact{}, store.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	q.contacts[id] = c
	return c, nil
}

func (q *stubQuerier) DeleteContact(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.contacts[id]; !ok {
		return store.ErrNotFound
	}
	delete(q.contacts, id)
	return nil
}

func (q *stubQuerier) ListTeamMembers(context.Context) ([]store.TeamMember, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]store.TeamMember{}, q.team...), nil
}

func (q *stubQuerier) CreateTeamMember(_ context.Context, in store.TeamMemberInput) (store.TeamMember, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := store.TeamMember{ID: uuid.New(), Name: in.Name, RoleTitle: in.RoleTitle, SortOrder: in.SortOrder}
	q.team = append(q.team, m)
	return m, nil
}

func (q *stubQuerier) CreateInterestedUser(_ context.Context, in store.InterestedUserInput) (store.InterestedUser, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.interest[in.Email]; ok {
		return store.InterestedUser{}, fmt.Errorf("CreateInterestedUser: %w", store.ErrAlreadyExists)
	}
	u := store.InterestedUser{ID: uuid.New(), Name: in.Name, Email: in.Email, CreatedAt: time.Now()}
	q.interest[in.Email] = u
	return u, nil
}

func (q *stubQuerier) CreateSponsorInquiry(_ context.Context, in store.SponsorInquiryInput) (store.SponsorInquiry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := store.SponsorInquiry{ID: uuid.New(), Company: in.Company, ContactName: in.ContactName, Email: in.Email, Status: store.InquiryOpen}
	q.inquiries[i.ID] = i
	return i, nil
}

func (q *stubQuerier) ListSponsorInquiries(_ context.Context, p store.ListParams) (store.Page[store.SponsorInquiry], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := []store.SponsorInquiry{}
	for _, i := range q.inquiries {
		items = append(items, i)
	}
	return store.Page[store.SponsorInquiry]{Items: items, Total: int64(len(items)), Limit: p.Limit}, nil
}

func (q *stubQuerier) UpdateSponsorInquiryStatus(_ context.Context, id uuid.UUID, status store.InquiryStatus) (store.SponsorInquiry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.inquiries[id]
	if !ok {
		return store.SponsorInquiry{}, store.ErrNotFound
	}
	i.Status = status
	q.inquiries[id] = i
	return i, nil
}

func (q *stubQuerier) RecordSentEmails(_ context.Context, records []store.SentEmail) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, records...)
	return nil
}

// stubMailer records calls and returns canned results.
type stubMailer struct {
	batchResult email.BatchResult
	batchErr    error
	sendErr     error
	batches     [][]email.Message
}

func (m *stubMailer) Send(_ context.Context, msg email.Message) (email.SentMessage, error) {
	if m.sendErr != nil {
		return email.SentMessage{}, m.sendErr
	}
	return email.SentMessage{ID: uuid.New(), ProviderID: "re_1", To: msg.To, Subject: msg.Subject, Status: email.StatusDelivered}, nil
}

func (m *stubMailer) SendBatch(_ context.Context, msgs []email.Message) (email.BatchResult, error) {
	m.batches = append(m.batches, msgs)
	return m.batchResult, m.batchErr
}

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

const testSecret = "test-secret-0123456789abcdef0123456789"

type testDeps struct {
	q       *stubQuerier
	mailer  *stubMailer
	handler http.Handler
}

func newTestServer(t *testing.T, cfgOverrides ...func(*api.Config)) *testDeps {
	t.Helper()

	q := newStubQuerier()
	ml := &stubMailer{}

	cfg := api.Config{
		Env:            func() config.Environment { return config.Development },
		AllowedOrigins: []string{"https://outreach.example.org"},
		RequestTimeout: 5 * time.Second,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	for _, fn := range cfgOverrides {
		fn(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := func() config.Environment { return config.Development }
	verifier := auth.NewVerifier(env, secretFor{})
	resolver := auth.NewResolver(q, auth.ResolverConfig{
		KnownRoles: []string{"ADMIN", "ORGANIZER", "SPONSORSHIP", "MEMBER"},
	}, env, logger)

	return &testDeps{
		q:       q,
		mailer:  ml,
		handler: api.NewServer(q, verifier, resolver, ml, cfg, logger),
	}
}

type secretFor struct{}

func (secretFor) JWTSecret(config.Environment) []byte { return []byte(testSecret) }

// tokenFor registers userID with roles and returns a signed bearer header.
func (d *testDeps) tokenFor(t *testing.T, userID string, roles ...string) map[string]string {
	t.Helper()
	raw, err := json.Marshal(roles)
	require.NoError(t, err)
	d.q.roles[userID] = string(raw)
	return bearer(t, jwt.MapClaims{
		"sub": userID,
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
}

func bearer(t *testing.T, claims jwt.MapClaims) map[string]string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, rr.Body.String())
	}
}

func validMessage(to string) map[string]any {
	return map[string]any{"to": []string{to}, "subject": "Hello", "html": "<p>hi</p>"}
}

// ─── HEALTH ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyz_DatabaseDown(t *testing.T) {
	deps := newTestServer(t)
	deps.q.pingErr = errors.New("connection refused")

	rr := doRequest(t, deps.handler, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// ─── AUTHENTICATION ───────────────────────────────────────────────────────────

func TestProtectedRoute_MissingTokenReturns401(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var body map[string]string
	decodeJSON(t, rr, &body)
	assert.Equal(t, "missing", body["kind"])
	assert.Equal(t, "missing authorization token", body["error"])
}

func TestProtectedRoute_ExpiredTokenReturns401(t *testing.T) {
	deps := newTestServer(t)
	headers := bearer(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts", nil, headers)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var body map[string]string
	decodeJSON(t, rr, &body)
	assert.Equal(t, "expired", body["kind"])
}

func TestProtectedRoute_BadSignatureReturns401(t *testing.T) {
	deps := newTestServer(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("not-the-server-secret-0123456789abcdef"))
	require.NoError(t, err)

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts", nil, map[string]string{"Authorization": "bearer " + tok})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var body map[string]string
	decodeJSON(t, rr, &body)
	assert.Equal(t, "invalid_signature", body["kind"])
}

func TestProtectedRoute_WrongRoleReturns403(t *testing.T) {
	deps := newTestServer(t)
	headers := deps.tokenFor(t, "member-1", "MEMBER")

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts", nil, headers)
	require.Equal(t, http.StatusForbidden, rr.Code)

	var body map[string]string
	decodeJSON(t, rr, &body)
	assert.Equal(t, map[string]string{"error": "forbidden"}, body)
}

func TestProtectedRoute_UnknownAccountReturns403(t *testing.T) {
	deps := newTestServer(t)
	headers := bearer(t, jwt.MapClaims{"sub": "stranger", "exp": jwt.NewNumericDate(time.Now().Add(time.Hour))})

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts", nil, headers)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdminPassesEveryGuard(t *testing.T) {
	deps := newTestServer(t)
	headers := deps.tokenFor(t, "admin-1", "admin")

	for _, path := range []string{"/api/v1/contacts", "/api/v1/sponsors/inquiries"} {
		rr := doRequest(t, deps.handler, http.MethodGet, path, nil, headers)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestMe_ReturnsClaimsAndRoles(t *testing.T) {
	deps := newTestServer(t)
	headers := deps.tokenFor(t, "org-1", "organizer", "ghost")

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/auth/me", nil, headers)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Subject string   `json:"sub"`
		Roles   []string `json:"roles"`
	}
	decodeJSON(t, rr, &body)
	assert.Equal(t, "org-1", body.Subject)
	assert.Equal(t, []string{"ORGANIZER"}, body.Roles)
}

func TestDecodeToken_DevelopmentOnly(t *testing.T) {
	headersAndToken := func(deps *testDeps) (map[string]string, string) {
		h := deps.tokenFor(t, "member-1", "MEMBER")
		return h, strings.TrimPrefix(h["Authorization"], "Bearer ")
	}

	deps := newTestServer(t)
	headers, tok := headersAndToken(deps)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/auth/decode", map[string]string{"token": tok}, headers)
	require.Equal(t, http.StatusOK, rr.Code)
	var claims map[string]any
	decodeJSON(t, rr, &claims)
	assert.Equal(t, "member-1", claims["sub"])

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/auth/decode", map[string]string{"token": "garbage"}, headers)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	prod := newTestServer(t, func(c *api.Config) {
		c.Env = func() config.Environment { return config.Production }
	})
	headers, tok = headersAndToken(prod)
	rr = doRequest(t, prod.handler, http.MethodPost, "/api/v1/auth/decode", map[string]string{"token": tok}, headers)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ─── CONTACTS ─────────────────────────────────────────────────────────────────

func TestContacts_CRUD(t *testing.T) {
	deps := newTestServer(t)
	headers := deps.tokenFor(t, "org-1", "ORGANIZER")

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/contacts",
		map[string]string{"name": "Ada", "email": "ada@example.com", "organization": "Engines"}, headers)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created store.Contact
	decodeJSON(t, rr, &created)
	assert.Equal(t, store.ContactNew, created.Status)

	path := "/api/v1/contacts/" + created.ID.String()

	rr = doRequest(t, deps.handler, http.MethodPatch, path, map[string]string{"status": "responded"}, headers)
	require.Equal(t, http.StatusOK, rr.Code)
	var updated store.Contact
	decodeJSON(t, rr, &updated)
	assert.Equal(t, store.ContactResponded, updated.Status)

	rr = doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts?limit=10", nil, headers)
	require.Equal(t, http.StatusOK, rr.Code)
	var page store.Page[store.Contact]
	decodeJSON(t, rr, &page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 10, page.Limit)

	rr = doRequest(t, deps.handler, http.MethodDelete, path, nil, headers)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodGet, path, nil, headers)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestContacts_Validation(t *testing.T) {
	deps := newTestServer(t)
	headers := deps.tokenFor(t, "org-1", "ORGANIZER")

	cases := []struct {
		name string
		body any
	}{
		{"missing name", map[string]string{"email": "ada@example.com"}},
		{"bad email", map[string]string{"name": "Ada", "email": "Ada <ada@example.com>"}},
		{"unknown status", map[string]string{"name": "Ada", "email": "ada@example.com", "status": "archived"}},
		{"unknown field", map[string]string{"name": "Ada", "email": "ada@example.com", "twitter": "@ada"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/contacts", tc.body, headers)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts/not-a-uuid", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodGet, "/api/v1/contacts?limit=ten", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// ─── TEAM ─────────────────────────────────────────────────────────────────────

func TestTeam_PublicReadAdminWrite(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/team", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := map[string]any{"name": "Grace", "role_title": "Lead"}

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/team", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/team", body, deps.tokenFor(t, "org-1", "ORGANIZER"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/team", body, deps.tokenFor(t, "admin-1", "ADMIN"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodGet, "/api/v1/team", nil, nil)
	var roster struct {
		Items []store.TeamMember `json:"items"`
	}
	decodeJSON(t, rr, &roster)
	require.Len(t, roster.Items, 1)
	assert.Equal(t, "Grace", roster.Items[0].Name)
}

// ─── PUBLIC FORMS ─────────────────────────────────────────────────────────────

func TestInterestedUsers_DuplicateReturns409(t *testing.T) {
	deps := newTestServer(t)
	body := map[string]string{"name": "Ada", "email": "Ada@Example.com"}

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/interested-users", body, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/interested-users",
		map[string]string{"name": "Ada", "email": "ada@example.com"}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestInterestedUsers_ListRequiresRole(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/v1/interested-users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPublicForms_RateLimited(t *testing.T) {
	deps := newTestServer(t, func(c *api.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 2
	})
	body := map[string]string{"company": "Acme", "contact_name": "Wile", "email": "wile@acme.test"}

	for i := 0; i < 2; i++ {
		rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries", body, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestPublicForms_RateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	deps := newTestServer(t, func(c *api.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 1
	})
	body := map[string]string{"company": "Acme", "contact_name": "Wile", "email": "wile@acme.test"}

	// httptest requests all come from 192.0.2.1.
	accepted := 0
	for i := 0; i < 20; i++ {
		rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries", body,
			map[string]string{"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1)})
		if rr.Code == http.StatusCreated {
			accepted++
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestPublicForms_RateLimitHonoursForwardedForFromTrustedProxy(t *testing.T) {
	deps := newTestServer(t, func(c *api.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 1
		c.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}
	})
	body := map[string]string{"company": "Acme", "contact_name": "Wile", "email": "wile@acme.test"}
	from := func(ip string) map[string]string { return map[string]string{"X-Forwarded-For": ip} }

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries", body, from("198.51.100.1"))
	assert.Equal(t, http.StatusCreated, rr.Code)
	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries", body, from("198.51.100.2"))
	assert.Equal(t, http.StatusCreated, rr.Code)
	rr = doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries", body, from("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestSponsorInquiries_StatusUpdate(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/sponsors/inquiries",
		map[string]string{"company": "Acme", "contact_name": "Wile", "email": "wile@acme.test"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var inq store.SponsorInquiry
	decodeJSON(t, rr, &inq)

	path := "/api/v1/sponsors/inquiries/" + inq.ID.String()
	sponsor := deps.tokenFor(t, "sp-1", "SPONSORSHIP")

	rr = doRequest(t, deps.handler, http.MethodPatch, path, map[string]string{"status": "pending"}, sponsor)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, deps.handler, http.MethodPatch, path, map[string]string{"status": "in_progress"}, sponsor)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeJSON(t, rr, &inq)
	assert.Equal(t, store.InquiryInProgress, inq.Status)

	rr = doRequest(t, deps.handler, http.MethodGet, "/api/v1/sponsors/inquiries", nil, deps.tokenFor(t, "org-1", "ORGANIZER"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

// ─── ENVIRONMENT ──────────────────────────────────────────────────────────────

const prodTestSecret = "prod-secret-0123456789abcdef0123456789"

type envSecrets map[config.Environment]string

func (m envSecrets) JWTSecret(env config.Environment) []byte { return []byte(m[env]) }

func TestRequest_EnvironmentSelectsSecretAndDatabase(t *testing.T) {
	prodQ, devQ := newStubQuerier(), newStubQuerier()
	prodQ.roles["org-1"] = `["ORGANIZER"]`

	env := config.Development
	current := func() config.Environment { return env }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := store.NewEnvRouter(map[config.Environment]store.Querier{
		config.Production:  prodQ,
		config.Development: devQ,
	}, current)
	verifier := auth.NewVerifier(current, envSecrets{
		config.Production:  prodTestSecret,
		config.Development: testSecret,
	})
	resolver := auth.NewResolver(router, auth.ResolverConfig{KnownRoles: []string{"ORGANIZER"}}, current, logger)
	h := api.NewServer(router, verifier, resolver, &stubMailer{}, api.Config{
		Env:            current,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}, logger)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "org-1",
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(prodTestSecret))
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + tok}
	body := map[string]string{"name": "Ada", "email": "ada@example.com"}

	rr := doRequest(t, h, http.MethodPost, "/api/v1/contacts", body, headers)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	env = config.Production
	rr = doRequest(t, h, http.MethodPost, "/api/v1/contacts", body, headers)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Len(t, prodQ.contacts, 1)
	assert.Empty(t, devQ.contacts)
}

func TestRequest_EnvironmentWithoutDatabase(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	current := func() config.Environment { return config.Production }
	router := store.NewEnvRouter(map[config.Environment]store.Querier{
		config.Development: newStubQuerier(),
	}, current)
	h := api.NewServer(router, auth.NewVerifier(current, secretFor{}),
		auth.NewResolver(router, auth.ResolverConfig{}, current, logger),
		&stubMailer{}, api.Config{Env: current, RateLimitRPS: 100, RateLimitBurst: 100}, logger)

	rr := doRequest(t, h, http.MethodGet, "/api/v1/team", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// ─── EMAILS ───────────────────────────────────────────────────────────────────

func TestSendEmail_RecordsSent(t *testing.T) {
	deps := newTestServer(t)
	headers := deps.tokenFor(t, "org-1", "ORGANIZER")

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/emails/send", validMessage("ada@example.com"), headers)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Len(t, deps.q.sent, 1)
	assert.Equal(t, "org-1", deps.q.sent[0].SentBy)
	assert.Equal(t, "re_1", deps.q.sent[0].ProviderID)
}

func TestSendEmail_ProviderFailureIsInternalError(t *testing.T) {
	deps := newTestServer(t)
	deps.mailer.sendErr = fmt.Errorf("%w: Resend error validation_error: Invalid to field", email.ErrDispatch)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/emails/send",
		validMessage("ada@example.com"), deps.tokenFor(t, "org-1", "ORGANIZER"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid to field")
	assert.Empty(t, deps.q.sent)
}

func TestSendEmail_InvalidMessageReturns400(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/emails/send",
		map[string]any{"to": []string{}, "subject": ""}, deps.tokenFor(t, "org-1", "ORGANIZER"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendBatch_StatusReflectsOutcome(t *testing.T) {
	sent := []email.SentMessage{{ID: uuid.New(), ProviderID: "re_1", To: []string{"a@example.com"}, Status: email.StatusDelivered}}

	cases := []struct {
		name   string
		result email.BatchResult
		err    error
		want   int
	}{
		{"all sent", email.BatchResult{Sent: sent, TotalBatches: 1}, nil, http.StatusOK},
		{"partial", email.BatchResult{Sent: sent, FailedBatches: 1, TotalBatches: 2}, nil, http.StatusMultiStatus},
		{"all failed", email.BatchResult{Sent: []email.SentMessage{}, FailedBatches: 2, TotalBatches: 2}, email.ErrDispatchFailed, http.StatusInternalServerError},
		{"interrupted", email.BatchResult{Sent: sent, TotalBatches: 3}, context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestServer(t)
			deps.mailer.batchResult = tc.result
			deps.mailer.batchErr = tc.err

			rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/emails/send-batch",
				map[string]any{"messages": []any{validMessage("a@example.com"), validMessage("b@example.com")}},
				deps.tokenFor(t, "org-1", "ORGANIZER"))
			require.Equal(t, tc.want, rr.Code, rr.Body.String())

			var body struct {
				Sent          []email.SentMessage `json:"sent"`
				FailedBatches int                 `json:"failed_batch_count"`
				TotalBatches  int                 `json:"total_batches"`
			}
			decodeJSON(t, rr, &body)
			assert.NotNil(t, body.Sent)
			assert.Len(t, body.Sent, len(tc.result.Sent))
			assert.Equal(t, tc.result.FailedBatches, body.FailedBatches)
			assert.Equal(t, tc.result.TotalBatches, body.TotalBatches)
			assert.Len(t, deps.q.sent, len(tc.result.Sent))
		})
	}
}

func TestSendBatch_RejectsInvalidMessageBeforeSending(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/v1/emails/send-batch",
		map[string]any{"messages": []any{validMessage("a@example.com"), map[string]any{"to": []string{"b@example.com"}}}},
		deps.tokenFor(t, "org-1", "ORGANIZER"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "messages[1]")
	assert.Empty(t, deps.mailer.batches)
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS_Preflight(t *testing.T) {
	deps := newTestServer(t)

	rr := doRequest(t, deps.handler, http.MethodOptions, "/api/v1/contacts", nil,
		map[string]string{"Origin": "https://outreach.example.org"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://outreach.example.org", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = doRequest(t, deps.handler, http.MethodOptions, "/api/v1/contacts", nil,
		map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
