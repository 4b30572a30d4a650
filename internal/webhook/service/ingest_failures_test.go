package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -- Mocks --

type eventRepoMock struct {
	mock.Mock
}

func (m *eventRepoMock) InsertEvent(ctx context.Context, event *domain.Event) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *eventRepoMock) FindByProviderEventID(ctx context.Context, providerEventID string) (*domain.Event, error) {
	args := m.Called(ctx, providerEventID)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.(*domain.Event), args.Error(1)
}

func (m *eventRepoMock) ClearError(ctx context.Context, id snowflake.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *eventRepoMock) MarkProcessed(ctx context.Context, id snowflake.ID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *eventRepoMock) MarkFailed(ctx context.Context, id snowflake.ID, message string) error {
	return m.Called(ctx, id, message).Error(0)
}

func (m *eventRepoMock) List(ctx context.Context, filter domain.ListFilter) ([]domain.Event, error) {
	args := m.Called(ctx, filter)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.([]domain.Event), args.Error(1)
}

type directoryMock struct {
	mock.Mock
}

func (m *directoryMock) ApplyUser(ctx context.Context, user directorydomain.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *directoryMock) DeleteUser(ctx context.Context, clerkID string) error {
	return m.Called(ctx, clerkID).Error(0)
}
func (m *directoryMock) ApplyOrganization(ctx context.Context, org directorydomain.Organization) error {
	return m.Called(ctx, org).Error(0)
}
func (m *directoryMock) DeleteOrganization(ctx context.Context, clerkID string) error {
	return m.Called(ctx, clerkID).Error(0)
}
func (m *directoryMock) ApplyMembership(ctx context.Context, membership directorydomain.Membership, refs directorydomain.MembershipRefs) error {
	return m.Called(ctx, membership, refs).Error(0)
}
func (m *directoryMock) DeleteMembership(ctx context.Context, clerkID string) error {
	return m.Called(ctx, clerkID).Error(0)
}
func (m *directoryMock) GetUser(context.Context, string) (*directorydomain.User, error) {
	return nil, nil
}
func (m *directoryMock) GetOrganization(context.Context, string) (*directorydomain.Organization, error) {
	return nil, nil
}
func (m *directoryMock) ListOrganizationMembers(context.Context, string) ([]directorydomain.Member, error) {
	return nil, nil
}

type staticVerifier struct {
	envelope *domain.Envelope
}

func (v staticVerifier) Verify([]byte, domain.SignatureHeaders) (*domain.Envelope, error) {
	return v.envelope, nil
}

// -- Tests --

var testHeaders = domain.SignatureHeaders{ID: "msg_1", Timestamp: "1714550400", Signature: "v1,sig"}

func newMockedService(t *testing.T, repo *eventRepoMock, dir *directoryMock, envelope *domain.Envelope) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return NewService(Params{
		Repo:      repo,
		Directory: dir,
		Verifier:  staticVerifier{envelope: envelope},
		Policy:    config.NewStaticWebhookPolicy(config.DefaultWebhookPolicy()),
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
	})
}

func userEnvelope() *domain.Envelope {
	return &domain.Envelope{Type: domain.EventUserCreated, Data: []byte(`{"id":"user_1"}`)}
}

func TestIngest_MarkProcessedFailureIsRetryable(t *testing.T) {
	repo := &eventRepoMock{}
	dir := &directoryMock{}
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(true, nil)
	dir.On("ApplyUser", mock.Anything, mock.MatchedBy(func(u directorydomain.User) bool { return u.ClerkID == "user_1" })).Return(nil)
	repo.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"))

	svc := newMockedService(t, repo, dir, userEnvelope())
	outcome, err := svc.Ingest(context.Background(), []byte(`{}`), testHeaders)

	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "mark processed")
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	dir.AssertExpectations(t)
}

func TestIngest_MarkFailedFailureKeepsClassification(t *testing.T) {
	cases := []struct {
		name          string
		procErr       error
		wantRetryable bool
	}{
		{name: "terminal", procErr: errors.New("Some unexpected non-retryable error"), wantRetryable: false},
		{name: "retryable", procErr: errors.New("read tcp: ECONNRESET"), wantRetryable: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &eventRepoMock{}
			dir := &directoryMock{}
			repo.On("InsertEvent", mock.Anything, mock.Anything).Return(true, nil)
			dir.On("ApplyUser", mock.Anything, mock.Anything).Return(tc.procErr)
			repo.On("MarkFailed", mock.Anything, mock.Anything, tc.procErr.Error()).Return(errors.New("db unavailable"))

			svc := newMockedService(t, repo, dir, userEnvelope())
			outcome, err := svc.Ingest(context.Background(), []byte(`{}`), testHeaders)

			if tc.wantRetryable {
				require.Error(t, err)
				assert.True(t, domain.IsRetryable(err))
				assert.ErrorIs(t, err, tc.procErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusFailed, outcome.Status)
			assert.Equal(t, tc.procErr.Error(), outcome.Error)
			repo.AssertExpectations(t)
		})
	}
}

func TestIngest_InsertFailurePropagatesAsRetryable(t *testing.T) {
	repo := &eventRepoMock{}
	dir := &directoryMock{}
	insertErr := errors.New("connection reset by peer")
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(false, insertErr)

	svc := newMockedService(t, repo, dir, userEnvelope())
	_, err := svc.Ingest(context.Background(), []byte(`{}`), testHeaders)

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.ErrorIs(t, err, insertErr)
	dir.AssertNotCalled(t, "ApplyUser", mock.Anything, mock.Anything)
}

func TestIngest_DuplicateSkipsProcessing(t *testing.T) {
	repo := &eventRepoMock{}
	dir := &directoryMock{}
	processedAt := time.Now().UTC()
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("FindByProviderEventID", mock.Anything, "msg_1").Return(&domain.Event{ID: 42, ProviderEventID: "msg_1", ProcessedAt: &processedAt}, nil)

	svc := newMockedService(t, repo, dir, userEnvelope())
	outcome, err := svc.Ingest(context.Background(), []byte(`{}`), testHeaders)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDuplicate, outcome.Status)
	dir.AssertNotCalled(t, "ApplyUser", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ClearError", mock.Anything, mock.Anything)
}

func TestIngest_UnfinishedRedeliveryClearsError(t *testing.T) {
	repo := &eventRepoMock{}
	dir := &directoryMock{}
	previous := "referenced entity not found"
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("FindByProviderEventID", mock.Anything, "msg_1").Return(&domain.Event{ID: 42, ProviderEventID: "msg_1", Error: &previous}, nil)
	repo.On("ClearError", mock.Anything, snowflake.ID(42)).Return(nil).Once()
	dir.On("ApplyUser", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("MarkProcessed", mock.Anything, snowflake.ID(42), mock.Anything).Return(nil).Once()

	svc := newMockedService(t, repo, dir, userEnvelope())
	outcome, err := svc.Ingest(context.Background(), []byte(`{}`), testHeaders)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, outcome.Status)
	repo.AssertExpectations(t)
	dir.AssertExpectations(t)
}

func TestProcessEventDispatch(t *testing.T) {
	cases := []struct {
		name     string
		envelope *domain.Envelope
		setup    func(*directoryMock)
	}{
		{
			name:     "organization deleted",
			envelope: &domain.Envelope{Type: domain.EventOrganizationDeleted, Data: []byte(`{"id":"org_1","deleted":true}`)},
			setup:    func(d *directoryMock) { d.On("DeleteOrganization", mock.Anything, "org_1").Return(nil).Once() },
		},
		{
			name:     "membership deleted",
			envelope: &domain.Envelope{Type: domain.EventMembershipDeleted, Data: []byte(`{"id":"orgmem_1","deleted":true}`)},
			setup:    func(d *directoryMock) { d.On("DeleteMembership", mock.Anything, "orgmem_1").Return(nil).Once() },
		},
		{
			name:     "organization updated",
			envelope: &domain.Envelope{Type: domain.EventOrganizationUpdated, Data: []byte(`{"id":"org_1","name":"Acme","slug":"acme"}`)},
			setup: func(d *directoryMock) {
				d.On("ApplyOrganization", mock.Anything, mock.MatchedBy(func(o directorydomain.Organization) bool {
					return o.ClerkID == "org_1" && o.Slug == "acme"
				})).Return(nil).Once()
			},
		},
		{
			name:     "membership updated",
			envelope: &domain.Envelope{Type: domain.EventMembershipUpdated, Data: []byte(`{"id":"orgmem_1","role":"org:member","organization":{"id":"org_1"},"public_user_data":{"user_id":"user_1"}}`)},
			setup: func(d *directoryMock) {
				d.On("ApplyMembership", mock.Anything, mock.Anything, directorydomain.MembershipRefs{
					OrganizationClerkID: "org_1",
					UserClerkID:         "user_1",
				}).Return(nil).Once()
			},
		},
		{
			name:     "unknown type",
			envelope: &domain.Envelope{Type: domain.EventType("email.created"), Data: []byte(`{}`)},
			setup:    func(*directoryMock) {},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := &directoryMock{}
			tc.setup(dir)
			svc := newMockedService(t, &eventRepoMock{}, dir, nil)

			require.NoError(t, svc.ProcessEvent(context.Background(), tc.envelope))
			dir.AssertExpectations(t)
		})
	}
}

func TestProcessEventMissingData(t *testing.T) {
	svc := newMockedService(t, &eventRepoMock{}, &directoryMock{}, nil)
	err := svc.ProcessEvent(context.Background(), &domain.Envelope{Type: domain.EventUserCreated})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
