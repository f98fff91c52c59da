package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	// FindByID finds a conversation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// FindByIDForPractice finds a conversation by ID within a practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*Conversation, error)

	// FindAllForPractice finds all conversations of a practice
	FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]Conversation, error)

	// FindByMatter finds conversations attached to a matter
	FindByMatter(ctx context.Context, practiceID, matterID uuid.UUID) ([]Conversation, error)

	// Save creates or updates a conversation
	Save(ctx context.Context, conversation *Conversation) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, conversation *Conversation) error

	// Delete deletes a conversation and its messages
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository defines the interface for message persistence
type MessageRepository interface {
	// FindByID finds a message by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Message, error)

	// FindByConversation lists messages in a conversation, oldest first
	FindByConversation(ctx context.Context, conversationID uuid.UUID, filter shared.Filter) ([]Message, error)

	// Save persists a message
	Save(ctx context.Context, message *Message) error

	// CountUnread counts unread messages in a conversation not sent by the
	// given participant
	CountUnread(ctx context.Context, conversationID, participantID uuid.UUID) (int64, error)
}
