package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/outreachhq/outreach-backend/internal/config"
)

// ErrUnavailable is returned when no database is configured for the
// environment a request runs in.
var ErrUnavailable = errors.New("store: no database for environment")

// EnvRouter sends each call to the database of the request's environment.
// The environment comes from config.EnvironmentFrom, falling back to the
// current selector when the context carries none.
type EnvRouter struct {
	byEnv   map[config.Environment]Querier
	current func() config.Environment
}

var _ Querier = (*EnvRouter)(nil)

func NewEnvRouter(byEnv map[config.Environment]Querier, current func() config.Environment) *EnvRouter {
	return &EnvRouter{byEnv: byEnv, current: current}
}

func (r *EnvRouter) pick(ctx context.Context) (Querier, error) {
	env, ok := config.EnvironmentFrom(ctx)
	if !ok {
		env = r.current()
	}
	q, ok := r.byEnv[env]
	if !ok || q == nil {
		return nil, fmt.Errorf("%w %s", ErrUnavailable, env)
	}
	return q, nil
}

func (r *EnvRouter) FindAccount(ctx context.Context, key AccountKey, value string) (Account, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Account{}, err
	}
	return q.FindAccount(ctx, key, value)
}

// ─── CONTACTS ─────────────────────────────────────────────────────────────────

func (r *EnvRouter) ListContacts(ctx context.Context, p ListParams) (Page[Contact], error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Page[Contact]{}, err
	}
	return q.ListContacts(ctx, p)
}

func (r *EnvRouter) GetContact(ctx context.Context, id uuid.UUID) (Contact, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Contact{}, err
	}
	return q.GetContact(ctx, id)
}

func (r *EnvRouter) CreateContact(ctx context.Context, in ContactInput) (Contact, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Contact{}, err
	}
	return q.CreateContact(ctx, in)
}

func (r *EnvRouter) UpdateContact(ctx context.Context, id uuid.UUID, p ContactPatch) (Contact, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Contact{}, err
	}
	return q.UpdateContact(ctx, id, p)
}

func (r *EnvRouter) DeleteContact(ctx context.Context, id uuid.UUID) error {
	q, err := r.pick(ctx)
	if err != nil {
		return err
	}
	return q.DeleteContact(ctx, id)
}

// ─── TEAM ─────────────────────────────────────────────────────────────────────

func (r *EnvRouter) ListTeamMembers(ctx context.Context) ([]TeamMember, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return nil, err
	}
	return q.ListTeamMembers(ctx)
}

func (r *EnvRouter) CreateTeamMember(ctx context.Context, in TeamMemberInput) (TeamMember, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return TeamMember{}, err
	}
	return q.CreateTeamMember(ctx, in)
}

func (r *EnvRouter) UpdateTeamMember(ctx context.Context, id uuid.UUID, p TeamMemberPatch) (TeamMember, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return TeamMember{}, err
	}
	return q.UpdateTeamMember(ctx, id, p)
}

func (r *EnvRouter) DeleteTeamMember(ctx context.Context, id uuid.UUID) error {
	q, err := r.pick(ctx)
	if err != nil {
		return err
	}
	return q.DeleteTeamMember(ctx, id)
}

// ─── INTERESTED USERS ─────────────────────────────────────────────────────────

func (r *EnvRouter) CreateInterestedUser(ctx context.Context, in InterestedUserInput) (InterestedUser, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return InterestedUser{}, err
	}
	return q.CreateInterestedUser(ctx, in)
}

func (r *EnvRouter) ListInterestedUsers(ctx context.Context, p ListParams) (Page[InterestedUser], error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Page[InterestedUser]{}, err
	}
	return q.ListInterestedUsers(ctx, p)
}

func (r *EnvRouter) DeleteInterestedUser(ctx context.Context, id uuid.UUID) error {
	q, err := r.pick(ctx)
	if err != nil {
		return err
	}
	return q.DeleteInterestedUser(ctx, id)
}

// ─── SPONSOR INQUIRIES ────────────────────────────────────────────────────────

func (r *EnvRouter) CreateSponsorInquiry(ctx context.Context, in SponsorInquiryInput) (SponsorInquiry, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return SponsorInquiry{}, err
	}
	return q.CreateSponsorInquiry(ctx, in)
}

func (r *EnvRouter) ListSponsorInquiries(ctx context.Context, p ListParams) (Page[SponsorInquiry], error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Page[SponsorInquiry]{}, err
	}
	return q.ListSponsorInquiries(ctx, p)
}

func (r *EnvRouter) UpdateSponsorInquiryStatus(ctx context.Context, id uuid.UUID, status InquiryStatus) (SponsorInquiry, error) {
	q, err := r.pick(ctx)
	if err != nil {
		return SponsorInquiry{}, err
	}
	return q.UpdateSponsorInquiryStatus(ctx, id, status)
}

// ─── SENT EMAILS ──────────────────────────────────────────────────────────────

func (r *EnvRouter) RecordSentEmails(ctx context.Context, records []SentEmail) error {
	q, err := r.pick(ctx)
	if err != nil {
		return err
	}
	return q.RecordSentEmails(ctx, records)
}

func (r *EnvRouter) ListSentEmails(ctx context.Context, p ListParams) (Page[SentEmail], error) {
	q, err := r.pick(ctx)
	if err != nil {
		return Page[SentEmail]{}, err
	}
	return q.ListSentEmails(ctx, p)
}

func (r *EnvRouter) Ping(ctx context.Context) error {
	q, err := r.pick(ctx)
	if err != nil {
		return err
	}
	return q.Ping(ctx)
}
