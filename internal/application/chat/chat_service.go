package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/chat"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ChatService manages matter-scoped message threads
type ChatService struct {
	conversationRepo chat.ConversationRepository
	messageRepo      chat.MessageRepository
	matterRepo       matter.MatterRepository
	eventBus         shared.EventPublisher
	logger           *zap.Logger
}

// ChatServiceConfig contains the dependencies for ChatService
type ChatServiceConfig struct {
	ConversationRepo chat.ConversationRepository
	MessageRepo      chat.MessageRepository
	MatterRepo       matter.MatterRepository
	EventBus         shared.EventPublisher
	Logger           *zap.Logger
}

// NewChatService creates a new ChatService
func NewChatService(cfg ChatServiceConfig) *ChatService {
	return &ChatService{
		conversationRepo: cfg.ConversationRepo,
		messageRepo:      cfg.MessageRepo,
		matterRepo:       cfg.MatterRepo,
		eventBus:         cfg.EventBus,
		logger:           cfg.Logger,
	}
}

// CreateConversationInput contains the fields for starting a thread
type CreateConversationInput struct {
	Subject  string     `json:"subject" binding:"required"`
	MatterID *uuid.UUID `json:"matter_id"`
}

// PostMessageInput contains a new message
type PostMessageInput struct {
	SenderID   uuid.UUID            `json:"-"`
	SenderKind chat.ParticipantKind `json:"-"`
	Body       string               `json:"body" binding:"required"`
}

// ConversationResponse represents a conversation in API responses
type ConversationResponse struct {
	ID            uuid.UUID  `json:"id"`
	PracticeID    uuid.UUID  `json:"practice_id"`
	Subject       string     `json:"subject"`
	MatterID      *uuid.UUID `json:"matter_id,omitempty"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MessageCount  int        `json:"message_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderKind     string     `json:"sender_kind"`
	Body           string     `json:"body"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateConversation starts a thread, optionally attached to a matter
func (s *ChatService) CreateConversation(ctx context.Context, practiceID uuid.UUID, input CreateConversationInput) (*ConversationResponse, error) {
	if input.MatterID != nil {
		if _, err := s.matterRepo.FindByIDForPractice(ctx, practiceID, *input.MatterID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Matter not found")
			}
			return nil, err
		}
	}

	conv, err := chat.NewConversation(practiceID, input.Subject, input.MatterID)
	if err != nil {
		return nil, err
	}
	if err := s.conversationRepo.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	s.logger.Info("Conversation created",
		zap.String("practice_id", practiceID.String()),
		zap.String("conversation_id", conv.ID.String()))

	return toConversationResponse(conv), nil
}

// GetConversation returns a conversation within the practice
func (s *ChatService) GetConversation(ctx context.Context, practiceID, conversationID uuid.UUID) (*ConversationResponse, error) {
	conv, err := s.loadConversation(ctx, practiceID, conversationID)
	if err != nil {
		return nil, err
	}
	return toConversationResponse(conv), nil
}

// ListConversations returns the practice's conversations
func (s *ChatService) ListConversations(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]ConversationResponse, error) {
	conversations, err := s.conversationRepo.FindAllForPractice(ctx, practiceID, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]ConversationResponse, 0, len(conversations))
	for i := range conversations {
		responses = append(responses, *toConversationResponse(&conversations[i]))
	}
	return responses, nil
}

// ListMatterConversations returns conversations attached to a matter
func (s *ChatService) ListMatterConversations(ctx context.Context, practiceID, matterID uuid.UUID) ([]ConversationResponse, error) {
	conversations, err := s.conversationRepo.FindByMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	responses := make([]ConversationResponse, 0, len(conversations))
	for i := range conversations {
		responses = append(responses, *toConversationResponse(&conversations[i]))
	}
	return responses, nil
}

// PostMessage appends a message to an open conversation
func (s *ChatService) PostMessage(ctx context.Context, practiceID, conversationID uuid.UUID, input PostMessageInput) (*MessageResponse, error) {
	conv, err := s.loadConversation(ctx, practiceID, conversationID)
	if err != nil {
		return nil, err
	}

	msg, err := conv.PostMessage(input.SenderID, input.SenderKind, input.Body)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	if err := s.conversationRepo.SaveWithLock(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	s.flushEvents(ctx, conv)

	return toMessageResponse(msg), nil
}

// ListMessages returns a conversation's messages, oldest first
func (s *ChatService) ListMessages(ctx context.Context, practiceID, conversationID uuid.UUID, filter shared.Filter) ([]MessageResponse, error) {
	if _, err := s.loadConversation(ctx, practiceID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.FindByConversation(ctx, conversationID, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, *toMessageResponse(&messages[i]))
	}
	return responses, nil
}

// MarkMessageRead records the first read of a message
func (s *ChatService) MarkMessageRead(ctx context.Context, practiceID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "Message not found")
		}
		return err
	}
	if msg.PracticeID != practiceID {
		return shared.NewDomainError("NOT_FOUND", "Message not found")
	}

	msg.MarkRead()
	if err := s.messageRepo.Save(ctx, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// CountUnread counts a participant's unread messages in a conversation
func (s *ChatService) CountUnread(ctx context.Context, practiceID, conversationID, participantID uuid.UUID) (int64, error) {
	if _, err := s.loadConversation(ctx, practiceID, conversationID); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, conversationID, participantID)
}

// CloseConversation stops the thread from accepting new messages
func (s *ChatService) CloseConversation(ctx context.Context, practiceID, conversationID uuid.UUID) (*ConversationResponse, error) {
	conv, err := s.loadConversation(ctx, practiceID, conversationID)
	if err != nil {
		return nil, err
	}

	if err := conv.Close(); err != nil {
		return nil, err
	}
	if err := s.conversationRepo.SaveWithLock(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	return toConversationResponse(conv), nil
}

// ReopenConversation allows messages again
func (s *ChatService) ReopenConversation(ctx context.Context, practiceID, conversationID uuid.UUID) (*ConversationResponse, error) {
	conv, err := s.loadConversation(ctx, practiceID, conversationID)
	if err != nil {
		return nil, err
	}

	if err := conv.Reopen(); err != nil {
		return nil, err
	}
	if err := s.conversationRepo.SaveWithLock(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	return toConversationResponse(conv), nil
}

func (s *ChatService) flushEvents(ctx context.Context, root shared.AggregateRoot) {
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	root.ClearDomainEvents()
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish chat events", zap.Error(err))
	}
}

func (s *ChatService) loadConversation(ctx context.Context, practiceID, conversationID uuid.UUID) (*chat.Conversation, error) {
	conv, err := s.conversationRepo.FindByIDForPractice(ctx, practiceID, conversationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Conversation not found")
		}
		return nil, err
	}
	return conv, nil
}

func toConversationResponse(c *chat.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:            c.ID,
		PracticeID:    c.PracticeID,
		Subject:       c.Subject,
		MatterID:      c.MatterID,
		Status:        string(c.Status),
		LastMessageAt: c.LastMessageAt,
		MessageCount:  c.MessageCount,
		CreatedAt:     c.CreatedAt,
	}
}

func toMessageResponse(m *chat.Message) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderKind:     string(m.SenderKind),
		Body:           m.Body,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}
