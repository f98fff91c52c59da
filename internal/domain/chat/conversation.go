package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// ConversationStatus represents whether a conversation accepts new messages
type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "OPEN"
	ConversationStatusClosed ConversationStatus = "CLOSED"
)

// ParticipantKind distinguishes staff from clients in a conversation
type ParticipantKind string

const (
	ParticipantKindUser   ParticipantKind = "USER"   // Practice staff
	ParticipantKindClient ParticipantKind = "CLIENT" // External party
)

// MaxMessageLength bounds a single chat message
const MaxMessageLength = 10000

// Conversation is the aggregate root for a message thread, typically
// attached to a matter so parties and mediator can communicate.
type Conversation struct {
	shared.PracticeAggregateRoot
	Subject       string             `json:"subject"`
	MatterID      *uuid.UUID         `json:"matter_id"` // Optional matter attachment
	Status        ConversationStatus `json:"status"`
	LastMessageAt *time.Time         `json:"last_message_at"`
	MessageCount  int                `json:"message_count"`
	ClosedAt      *time.Time         `json:"closed_at"`
}

// NewConversation creates an open conversation
func NewConversation(practiceID uuid.UUID, subject string, matterID *uuid.UUID) (*Conversation, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, shared.NewDomainError("INVALID_SUBJECT", "Conversation subject cannot be empty")
	}
	if len(subject) > 300 {
		return nil, shared.NewDomainError("INVALID_SUBJECT", "Conversation subject cannot exceed 300 characters")
	}

	return &Conversation{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		Subject:               subject,
		MatterID:              matterID,
		Status:                ConversationStatusOpen,
	}, nil
}

// PostMessage validates and produces a message for this conversation.
// The message is persisted separately; the conversation only tracks
// the running count and recency.
func (c *Conversation) PostMessage(senderID uuid.UUID, senderKind ParticipantKind, body string) (*Message, error) {
	if c.Status != ConversationStatusOpen {
		return nil, shared.NewDomainError("CONVERSATION_CLOSED", "Cannot post to a closed conversation")
	}
	if senderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SENDER", "Sender ID cannot be empty")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, shared.NewDomainError("EMPTY_MESSAGE", "Message body cannot be empty")
	}
	if len(body) > MaxMessageLength {
		return nil, shared.NewDomainError("MESSAGE_TOO_LONG", "Message body exceeds the maximum length")
	}

	msg := &Message{
		BaseEntity:     shared.NewBaseEntity(),
		PracticeID:     c.PracticeID,
		ConversationID: c.ID,
		SenderID:       senderID,
		SenderKind:     senderKind,
		Body:           body,
	}

	now := time.Now()
	c.LastMessageAt = &now
	c.MessageCount++
	c.UpdatedAt = now
	c.IncrementVersion()

	c.AddDomainEvent(NewMessagePostedEvent(c, msg))

	return msg, nil
}

// Close stops the conversation from accepting new messages
func (c *Conversation) Close() error {
	if c.Status == ConversationStatusClosed {
		return shared.NewDomainError("ALREADY_CLOSED", "Conversation is already closed")
	}

	now := time.Now()
	c.Status = ConversationStatusClosed
	c.ClosedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()

	return nil
}

// Reopen allows messages again
func (c *Conversation) Reopen() error {
	if c.Status == ConversationStatusOpen {
		return shared.NewDomainError("ALREADY_OPEN", "Conversation is already open")
	}

	c.Status = ConversationStatusOpen
	c.ClosedAt = nil
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// Message is an entity within a conversation. Messages are immutable once
// posted; only read receipts change.
type Message struct {
	shared.BaseEntity
	PracticeID     uuid.UUID       `json:"practice_id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	SenderID       uuid.UUID       `json:"sender_id"`
	SenderKind     ParticipantKind `json:"sender_kind"`
	Body           string          `json:"body"`
	ReadAt         *time.Time      `json:"read_at"`
}

// MarkRead records when the message was first read
func (m *Message) MarkRead() {
	if m.ReadAt != nil {
		return
	}
	now := time.Now()
	m.ReadAt = &now
	m.UpdatedAt = now
}
