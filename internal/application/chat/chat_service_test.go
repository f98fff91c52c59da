package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/chat"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConversationRepo struct {
	chat.ConversationRepository

	mu   sync.Mutex
	byID map[uuid.UUID]*chat.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{byID: make(map[uuid.UUID]*chat.Conversation)}
}

func (f *fakeConversationRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (f *fakeConversationRepo) Save(ctx context.Context, c *chat.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[c.ID] = c
	return nil
}

func (f *fakeConversationRepo) SaveWithLock(ctx context.Context, c *chat.Conversation) error {
	return f.Save(ctx, c)
}

type fakeMessageRepo struct {
	chat.MessageRepository

	mu       sync.Mutex
	messages []*chat.Message
}

func (f *fakeMessageRepo) FindByID(ctx context.Context, id uuid.UUID) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeMessageRepo) FindByConversation(ctx context.Context, conversationID uuid.UUID, filter shared.Filter) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) Save(ctx context.Context, m *chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == m.ID {
			f.messages[i] = m
			return nil
		}
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeMessageRepo) CountUnread(ctx context.Context, conversationID, participantID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.SenderID != participantID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

type fakeMatterRepo struct {
	matter.MatterRepository

	matters map[uuid.UUID]*matter.Matter
}

func (f *fakeMatterRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*matter.Matter, error) {
	m, ok := f.matters[id]
	if !ok || m.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type chatFixture struct {
	service    *ChatService
	messages   *fakeMessageRepo
	bus        *recordingPublisher
	practiceID uuid.UUID
	matterID   uuid.UUID
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	practiceID := uuid.New()

	m, err := matter.NewMatter(practiceID, "MAT-20260801-00001", "Custody schedule", matter.MatterTypeFamily, uuid.New(), "Robin Vega", "Co-parent")
	require.NoError(t, err)
	m.ClearDomainEvents()

	messages := &fakeMessageRepo{}
	bus := &recordingPublisher{}
	service := NewChatService(ChatServiceConfig{
		ConversationRepo: newFakeConversationRepo(),
		MessageRepo:      messages,
		MatterRepo:       &fakeMatterRepo{matters: map[uuid.UUID]*matter.Matter{m.ID: m}},
		EventBus:         bus,
		Logger:           zap.NewNop(),
	})

	return &chatFixture{
		service:    service,
		messages:   messages,
		bus:        bus,
		practiceID: practiceID,
		matterID:   m.ID,
	}
}

func TestChatService_PostMessage_PublishesEvent(t *testing.T) {
	f := newChatFixture(t)

	conv, err := f.service.CreateConversation(context.Background(), f.practiceID, CreateConversationInput{
		Subject:  "Scheduling",
		MatterID: &f.matterID,
	})
	require.NoError(t, err)

	senderID := uuid.New()
	msg, err := f.service.PostMessage(context.Background(), f.practiceID, conv.ID, PostMessageInput{
		SenderID:   senderID,
		SenderKind: chat.ParticipantKindUser,
		Body:       "Proposing Thursday at 10am",
	})
	require.NoError(t, err)

	require.Len(t, f.bus.events, 1)
	posted, ok := f.bus.events[0].(*chat.MessagePostedEvent)
	require.True(t, ok)
	assert.Equal(t, conv.ID, posted.ConversationID)
	assert.Equal(t, msg.ID, posted.MessageID)
	assert.Equal(t, senderID, posted.SenderID)
	assert.Equal(t, "Scheduling", posted.Subject)
	assert.Equal(t, "Proposing Thursday at 10am", posted.Preview)
}

func TestChatService_ConversationLifecycle(t *testing.T) {
	f := newChatFixture(t)

	conv, err := f.service.CreateConversation(context.Background(), f.practiceID, CreateConversationInput{
		Subject:  "Scheduling the first session",
		MatterID: &f.matterID,
	})
	require.NoError(t, err)
	assert.Equal(t, string(chat.ConversationStatusOpen), conv.Status)

	mediatorID := uuid.New()
	msg, err := f.service.PostMessage(context.Background(), f.practiceID, conv.ID, PostMessageInput{
		SenderID:   mediatorID,
		SenderKind: chat.ParticipantKindUser,
		Body:       "Does Thursday afternoon work for everyone?",
	})
	require.NoError(t, err)
	assert.Equal(t, string(chat.ParticipantKindUser), msg.SenderKind)

	updated, err := f.service.GetConversation(context.Background(), f.practiceID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MessageCount)
	assert.NotNil(t, updated.LastMessageAt)

	closed, err := f.service.CloseConversation(context.Background(), f.practiceID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(chat.ConversationStatusClosed), closed.Status)

	_, err = f.service.PostMessage(context.Background(), f.practiceID, conv.ID, PostMessageInput{
		SenderID:   mediatorID,
		SenderKind: chat.ParticipantKindUser,
		Body:       "One more thing",
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONVERSATION_CLOSED", domainErr.Code)

	_, err = f.service.ReopenConversation(context.Background(), f.practiceID, conv.ID)
	require.NoError(t, err)

	_, err = f.service.PostMessage(context.Background(), f.practiceID, conv.ID, PostMessageInput{
		SenderID:   mediatorID,
		SenderKind: chat.ParticipantKindUser,
		Body:       "One more thing",
	})
	require.NoError(t, err)
}

func TestChatService_CreateConversation_UnknownMatter(t *testing.T) {
	f := newChatFixture(t)

	unknown := uuid.New()
	_, err := f.service.CreateConversation(context.Background(), f.practiceID, CreateConversationInput{
		Subject:  "Orphan thread",
		MatterID: &unknown,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestChatService_UnreadTracking(t *testing.T) {
	f := newChatFixture(t)

	conv, err := f.service.CreateConversation(context.Background(), f.practiceID, CreateConversationInput{
		Subject: "Document exchange",
	})
	require.NoError(t, err)

	clientID := uuid.New()
	mediatorID := uuid.New()

	first, err := f.service.PostMessage(context.Background(), f.practiceID, conv.ID, PostMessageInput{
		SenderID:   clientID,
		SenderKind: chat.ParticipantKindClient,
		Body:       "I have uploaded the financial statements.",
	})
	require.NoError(t, err)
	_, err = f.service.PostMessage(context.Background(), f.practiceID, conv.ID, PostMessageInput{
		SenderID:   clientID,
		SenderKind: chat.ParticipantKindClient,
		Body:       "Let me know if anything is missing.",
	})
	require.NoError(t, err)

	unread, err := f.service.CountUnread(context.Background(), f.practiceID, conv.ID, mediatorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, f.service.MarkMessageRead(context.Background(), f.practiceID, first.ID))

	unread, err = f.service.CountUnread(context.Background(), f.practiceID, conv.ID, mediatorID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// Marking twice keeps the original read time
	msg, err := f.messages.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	firstRead := *msg.ReadAt
	require.NoError(t, f.service.MarkMessageRead(context.Background(), f.practiceID, first.ID))
	assert.Equal(t, firstRead, *msg.ReadAt)
}
