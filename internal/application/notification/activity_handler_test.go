package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/chat"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/notification"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fakeUserRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*identity.User, error) {
	for i := range f.users {
		if f.users[i].ID == id && f.users[i].PracticeID == practiceID {
			return &f.users[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

type activityFixture struct {
	matters    *MatterNotificationHandler
	chats      *ChatNotificationHandler
	repo       *fakeNotificationRepo
	practiceID uuid.UUID
	mediator   *identity.User
	staff      *identity.User
}

func newActivityFixture(t *testing.T) *activityFixture {
	t.Helper()

	practiceID := uuid.New()

	mediator, err := identity.NewActiveUser(practiceID, "mediator@cedarlane.example.com", "correct-horse-9", identity.UserRoleMediator)
	require.NoError(t, err)
	staff, err := identity.NewActiveUser(practiceID, "staff@cedarlane.example.com", "correct-horse-9", identity.UserRoleStaff)
	require.NoError(t, err)
	deactivated, err := identity.NewActiveUser(practiceID, "former@cedarlane.example.com", "correct-horse-9", identity.UserRoleStaff)
	require.NoError(t, err)
	require.NoError(t, deactivated.Deactivate())

	repo := &fakeNotificationRepo{}
	users := &fakeUserRepo{users: []identity.User{*mediator, *staff, *deactivated}}

	return &activityFixture{
		matters:    NewMatterNotificationHandler(repo, users, zap.NewNop()),
		chats:      NewChatNotificationHandler(repo, users, zap.NewNop()),
		repo:       repo,
		practiceID: practiceID,
		mediator:   mediator,
		staff:      staff,
	}
}

func TestMatterNotificationHandler_MatterOpened(t *testing.T) {
	f := newActivityFixture(t)

	matterID := uuid.New()
	event := &matter.MatterOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterOpened", "Matter", matterID, f.practiceID),
		MatterID:        matterID,
		MatterNumber:    "MAT-20260820-00007",
		MediatorID:      &f.mediator.ID,
	}

	require.NoError(t, f.matters.Handle(context.Background(), event))

	require.Len(t, f.repo.saved, 1)
	n := f.repo.saved[0]
	assert.Equal(t, f.mediator.ID, n.RecipientID)
	assert.Equal(t, notification.KindMatterUpdate, n.Kind)
	assert.Contains(t, n.Title, "MAT-20260820-00007")
}

func TestMatterNotificationHandler_MatterOpened_NoMediator(t *testing.T) {
	f := newActivityFixture(t)

	matterID := uuid.New()
	event := &matter.MatterOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterOpened", "Matter", matterID, f.practiceID),
		MatterID:        matterID,
		MatterNumber:    "MAT-20260820-00008",
	}

	require.NoError(t, f.matters.Handle(context.Background(), event))
	assert.Empty(t, f.repo.saved)
}

func TestMatterNotificationHandler_MatterResolved(t *testing.T) {
	f := newActivityFixture(t)

	matterID := uuid.New()
	event := &matter.MatterResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterResolved", "Matter", matterID, f.practiceID),
		MatterID:        matterID,
		MatterNumber:    "MAT-20260820-00009",
		Status:          matter.MatterStatusSettled,
		ClientName:      "Jordan Reyes",
		MediatorID:      &f.mediator.ID,
	}

	require.NoError(t, f.matters.Handle(context.Background(), event))

	require.Len(t, f.repo.saved, 1)
	n := f.repo.saved[0]
	assert.Equal(t, f.mediator.ID, n.RecipientID)
	assert.Contains(t, n.Body, "Jordan Reyes")
	assert.Contains(t, n.Body, string(matter.MatterStatusSettled))
}

func TestMatterNotificationHandler_UnknownMediatorSkipped(t *testing.T) {
	f := newActivityFixture(t)

	matterID := uuid.New()
	unknown := uuid.New()
	event := &matter.MatterOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterOpened", "Matter", matterID, f.practiceID),
		MatterID:        matterID,
		MatterNumber:    "MAT-20260820-00010",
		MediatorID:      &unknown,
	}

	require.NoError(t, f.matters.Handle(context.Background(), event))
	assert.Empty(t, f.repo.saved)
}

func TestChatNotificationHandler_StaffSenderSkipped(t *testing.T) {
	f := newActivityFixture(t)

	conv, err := chat.NewConversation(f.practiceID, "Settlement terms", nil)
	require.NoError(t, err)
	msg, err := conv.PostMessage(f.staff.ID, chat.ParticipantKindUser, "Draft agreement attached for review")
	require.NoError(t, err)

	event := chat.NewMessagePostedEvent(conv, msg)
	require.NoError(t, f.chats.Handle(context.Background(), event))

	// Mediator is notified; the sending staff member and the deactivated user are not
	require.Len(t, f.repo.saved, 1)
	n := f.repo.saved[0]
	assert.Equal(t, f.mediator.ID, n.RecipientID)
	assert.Equal(t, notification.KindNewMessage, n.Kind)
	assert.Contains(t, n.Title, "Settlement terms")
	assert.Equal(t, "Draft agreement attached for review", n.Body)
}

func TestChatNotificationHandler_ClientSenderNotifiesAllStaff(t *testing.T) {
	f := newActivityFixture(t)

	conv, err := chat.NewConversation(f.practiceID, "Questions before Thursday", nil)
	require.NoError(t, err)
	msg, err := conv.PostMessage(uuid.New(), chat.ParticipantKindClient, "Can we move the session earlier?")
	require.NoError(t, err)

	event := chat.NewMessagePostedEvent(conv, msg)
	require.NoError(t, f.chats.Handle(context.Background(), event))

	require.Len(t, f.repo.saved, 2)
	recipients := []uuid.UUID{f.repo.saved[0].RecipientID, f.repo.saved[1].RecipientID}
	assert.Contains(t, recipients, f.mediator.ID)
	assert.Contains(t, recipients, f.staff.ID)
}
