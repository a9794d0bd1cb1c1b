package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"herald/pkg/logger"
	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/payload"
	"herald/services/notification/internal/repo/memory"
	"herald/services/notification/internal/repo/persistent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, err error, tags map[string]string) {
	m.Called(ctx, err, tags)
}

type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) Trigger(ctx context.Context, n entity.Notification, community entity.Community, recipients []entity.User) error {
	args := m.Called(ctx, n, community, recipients)
	return args.Error(0)
}

// failingLinks fails Upsert for the listed users and delegates the rest.
type failingLinks struct {
	persistent.UsersNotificationRepository
	failFor map[string]bool
}

func (f failingLinks) Upsert(ctx context.Context, notificationID, userID string) (*entity.UsersNotification, error) {
	if f.failFor[userID] {
		return nil, errors.New("connection reset")
	}
	return f.UsersNotificationRepository.Upsert(ctx, notificationID, userID)
}

type recordingLive struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (r *recordingLive) Deliver(ctx context.Context, userID string, n entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return r.err
}

func quietLogger() *logger.Logger {
	return logger.NewWithWriters(io.Discard, io.Discard)
}

func seededStore() *memory.Store {
	store := memory.NewStore()
	store.PutUser(entity.User{ID: "owner", Email: "owner@example.com", Username: "owner", Name: "Owner"})
	store.PutUser(entity.User{ID: "mod", Email: "mod@example.com", Username: "mod", Name: "Mod"})
	store.PutUser(entity.User{ID: "mod-2", Email: "mod2@example.com", Username: "mod2", Name: "Mod Two"})
	store.PutUser(entity.User{ID: "bad-mail", Email: "not-an-email", Username: "bad", Name: "Bad"})
	store.PutCommunity(entity.Community{ID: "gophers", Name: "Gophers", Slug: "gophers"})
	store.PutCommunity(entity.Community{ID: "rustaceans", Name: "Rustaceans", Slug: "rustaceans"})
	return store
}

type processorDeps struct {
	links    persistent.UsersNotificationRepository
	live     LiveDeliverer
	trigger  ContextTrigger
	reporter *MockReporter
}

func newTestProcessor(store *memory.Store, deps processorDeps) *Processor {
	log := quietLogger()
	links := deps.links
	if links == nil {
		links = store.UsersNotifications()
	}
	reporter := deps.reporter
	if reporter == nil {
		reporter = &MockReporter{}
	}
	return NewProcessor(
		payload.NewResolver(store.Users(), store.Communities(), nil, 0, log),
		NewAggregator(store.Notifications()),
		NewRecipientResolver(store.Users()),
		NewFanout(links, deps.live),
		store.Communities(),
		deps.trigger,
		reporter,
		log,
	)
}

func addedModerator(userID, communityID, moderatorID string) *AddedModeratorJob {
	return &AddedModeratorJob{UserID: userID, CommunityID: communityID, ModeratorID: moderatorID}
}

func TestProcess_AddedModerator(t *testing.T) {
	store := seededStore()
	live := &recordingLive{}
	p := newTestProcessor(store, processorDeps{live: live})

	result, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	require.NotNil(t, result.Notification)
	assert.Equal(t, entity.EventAddedModerator, result.Notification.Event)
	assert.Equal(t, "gophers", result.Notification.Context.ID)
	require.Len(t, result.Notification.Actors, 2)
	assert.Equal(t, "owner", result.Notification.Actors[0].ID)
	assert.Equal(t, "mod", result.Notification.Actors[1].ID)
	require.Len(t, result.Notification.Entities, 1)
	assert.Equal(t, entity.KindCommunity, result.Notification.Entities[0].Type)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Linked())
	assert.Equal(t, []string{"mod"}, live.users)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Notification.Context.Payload, &snapshot))
	assert.Equal(t, "Gophers", snapshot["name"])

	links := store.AllLinks()
	require.Len(t, links, 1)
	assert.Equal(t, "mod", links[0].UserID)
	assert.Equal(t, result.Notification.ID, links[0].NotificationID)
	assert.False(t, links[0].IsSeen)
}

func TestProcess_SameJobTwiceMergesAndKeepsOneLink(t *testing.T) {
	store := seededStore()
	p := newTestProcessor(store, processorDeps{})
	job := addedModerator("owner", "gophers", "mod")

	first, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, first.Notification.ID, second.Notification.ID)
	require.Len(t, store.AllNotifications(), 1)

	var actorIDs []string
	for _, a := range store.AllNotifications()[0].Actors {
		actorIDs = append(actorIDs, a.ID)
	}
	assert.Equal(t, []string{"owner", "mod", "owner", "mod"}, actorIDs)
	assert.Len(t, store.AllLinks(), 1)
}

func TestProcess_DifferentCommunitiesStaySeparate(t *testing.T) {
	store := seededStore()
	p := newTestProcessor(store, processorDeps{})

	a, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)
	b, err := p.Process(context.Background(), addedModerator("owner", "rustaceans", "mod"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Notification.ID, b.Notification.ID)
	assert.Len(t, store.AllNotifications(), 2)
	assert.Len(t, b.Notification.Actors, 2)
	assert.Len(t, store.AllLinks(), 2)
}

func TestProcess_ReadRecordIsNotMergedInto(t *testing.T) {
	store := seededStore()
	p := newTestProcessor(store, processorDeps{})
	ctx := context.Background()

	first, err := p.Process(ctx, addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)
	require.NoError(t, store.Notifications().MarkRead(ctx, first.Notification.ID))

	second, err := p.Process(ctx, addedModerator("owner", "gophers", "mod-2"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Notification.ID, second.Notification.ID)
	assert.False(t, second.Notification.IsRead)
	assert.Len(t, second.Notification.Actors, 2)

	closed, err := store.Notifications().GetByID(ctx, first.Notification.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsRead)
	assert.Len(t, closed.Actors, 2)
}

func TestProcess_IneligibleRecipientIsSkipped(t *testing.T) {
	store := seededStore()
	reporter := &MockReporter{}
	p := newTestProcessor(store, processorDeps{reporter: reporter})

	bad, err := p.Process(context.Background(), addedModerator("owner", "gophers", "bad-mail"))
	require.NoError(t, err)
	assert.Equal(t, StateDone, bad.State)
	assert.Empty(t, bad.Recipients)
	assert.Empty(t, bad.Links)
	assert.Empty(t, bad.Errors)

	good, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)
	assert.Equal(t, 1, good.Linked())

	links := store.AllLinks()
	require.Len(t, links, 1)
	assert.Equal(t, "mod", links[0].UserID)
	reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_LinkFailureIsReportedOnce(t *testing.T) {
	store := seededStore()
	reporter := &MockReporter{}
	reporter.On("Report", mock.Anything, mock.MatchedBy(func(err error) bool {
		var linkErr *LinkError
		return errors.As(err, &linkErr) && linkErr.UserID == "mod"
	}), mock.MatchedBy(func(tags map[string]string) bool {
		return tags["user_id"] == "mod" && tags["event"] == string(entity.EventAddedModerator)
	})).Once()

	p := newTestProcessor(store, processorDeps{
		links:    failingLinks{UsersNotificationRepository: store.UsersNotifications(), failFor: map[string]bool{"mod": true}},
		reporter: reporter,
	})

	result, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Len(t, store.AllNotifications(), 1)
	assert.Empty(t, store.AllLinks())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Linked())
	reporter.AssertExpectations(t)
	reporter.AssertNumberOfCalls(t, "Report", 1)
}

func TestProcess_MissingCommunityFailsWithoutRecord(t *testing.T) {
	store := seededStore()
	p := newTestProcessor(store, processorDeps{})

	result, err := p.Process(context.Background(), addedModerator("owner", "unknown", "mod"))
	require.Error(t, err)

	assert.True(t, errors.Is(err, entity.ErrNotFound))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, StateFailed, result.State)
	assert.Nil(t, result.Notification)
	assert.Empty(t, store.AllNotifications())
	assert.Empty(t, store.AllLinks())
}

func TestProcess_MissingCommunityIDIsRejected(t *testing.T) {
	store := seededStore()

	_, err := DecodeJob(entity.EventAddedModerator, json.RawMessage(`{"userId":"owner","moderatorId":"mod"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidJob))
	assert.Empty(t, store.AllNotifications())
}

func TestProcess_TriggerGetsCommunityAndRecipients(t *testing.T) {
	store := seededStore()
	trigger := &MockTrigger{}
	trigger.On("Trigger", mock.Anything, mock.Anything,
		mock.MatchedBy(func(c entity.Community) bool { return c.ID == "gophers" }),
		mock.MatchedBy(func(users []entity.User) bool { return len(users) == 1 && users[0].ID == "mod" }),
	).Return(nil).Once()

	p := newTestProcessor(store, processorDeps{trigger: trigger})

	result, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	trigger.AssertExpectations(t)
}

func TestProcess_TriggerSkippedWithoutRecipients(t *testing.T) {
	store := seededStore()
	trigger := &MockTrigger{}
	p := newTestProcessor(store, processorDeps{trigger: trigger})

	_, err := p.Process(context.Background(), addedModerator("owner", "gophers", "bad-mail"))
	require.NoError(t, err)
	trigger.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_DeliveryFailuresDoNotFailJob(t *testing.T) {
	store := seededStore()
	trigger := &MockTrigger{}
	trigger.On("Trigger", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()
	reporter := &MockReporter{}
	reporter.On("Report", mock.Anything, mock.Anything, mock.Anything).Twice()
	live := &recordingLive{err: errors.New("redis down")}

	p := newTestProcessor(store, processorDeps{live: live, trigger: trigger, reporter: reporter})

	result, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, result.Linked())
	assert.Len(t, result.Errors, 2)
	reporter.AssertNumberOfCalls(t, "Report", 2)
}

func TestProcess_PrivateCommunityRequestApproved(t *testing.T) {
	store := seededStore()
	p := newTestProcessor(store, processorDeps{})

	job := &PrivateCommunityRequestApprovedJob{UserID: "mod-2", CommunityID: "gophers", ModeratorID: "mod"}
	result, err := p.Process(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, result.Notification.Actors, 1)
	assert.Equal(t, "mod", result.Notification.Actors[0].ID)
	assert.Equal(t, entity.EventPrivateCommunityRequestApproved, result.Notification.Event)

	links := store.AllLinks()
	require.Len(t, links, 1)
	assert.Equal(t, "mod-2", links[0].UserID)
}

func TestProcess_ConcurrentJobsShareOneRecord(t *testing.T) {
	store := seededStore()
	p := newTestProcessor(store, processorDeps{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Process(context.Background(), addedModerator("owner", "gophers", "mod"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, store.AllNotifications(), 1)
	assert.Len(t, store.AllNotifications()[0].Actors, 40)
	assert.Len(t, store.AllLinks(), 1)
}
