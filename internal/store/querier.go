package store

import (
	"context"

	"github.com/google/uuid"
)

// Querier is every operation the HTTP layer and the role resolver need.
// *Store is the production implementation; tests inject stubs.
type Querier interface {
	FindAccount(ctx context.Context, key AccountKey, value string) (Account, error)

	ListContacts(ctx context.Context, p ListParams) (Page[Contact], error)
	GetContact(ctx context.Context, id uuid.UUID) (Contact, error)
	CreateContact(ctx context.Context, in ContactInput) (Contact, error)
	UpdateContact(ctx context.Context, id uuid.UUID, p ContactPatch) (Contact, error)
	DeleteContact(ctx context.Context, id uuid.UUID) error

	ListTeamMembers(ctx context.Context) ([]TeamMember, error)
	CreateTeamMember(ctx context.Context, in TeamMemberInput) (TeamMember, error)
	UpdateTeamMember(ctx context.Context, id uuid.UUID, p TeamMemberPatch) (TeamMember, error)
	DeleteTeamMember(ctx context.Context, id uuid.UUID) error

	CreateInterestedUser(ctx context.Context, in InterestedUserInput) (InterestedUser, error)
	ListInterestedUsers(ctx context.Context, p ListParams) (Page[InterestedUser], error)
	DeleteInterestedUser(ctx context.Context, id uuid.UUID) error

	CreateSponsorInquiry(ctx context.Context, in SponsorInquiryInput) (SponsorInquiry, error)
	ListSponsorInquiries(ctx context.Context, p ListParams) (Page[SponsorInquiry], error)
	UpdateSponsorInquiryStatus(ctx context.Context, id uuid.UUID, status InquiryStatus) (SponsorInquiry, error)

	RecordSentEmails(ctx context.Context, records []SentEmail) error
	ListSentEmails(ctx context.Context, p ListParams) (Page[SentEmail], error)

	Ping(ctx context.Context) error
}

var _ Querier = (*Store)(nil)
