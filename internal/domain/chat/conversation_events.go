package chat

import (
	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// messagePreviewLength bounds the body excerpt carried on the event
const messagePreviewLength = 120

// MessagePostedEvent is raised when a message is posted to a conversation
type MessagePostedEvent struct {
	shared.BaseDomainEvent
	ConversationID uuid.UUID       `json:"conversation_id"`
	Subject        string          `json:"subject"`
	MatterID       *uuid.UUID      `json:"matter_id,omitempty"`
	MessageID      uuid.UUID       `json:"message_id"`
	SenderID       uuid.UUID       `json:"sender_id"`
	SenderKind     ParticipantKind `json:"sender_kind"`
	Preview        string          `json:"preview"`
}

// EventType returns the event type name
func (e *MessagePostedEvent) EventType() string {
	return "MessagePosted"
}

// NewMessagePostedEvent creates a new MessagePostedEvent
func NewMessagePostedEvent(c *Conversation, msg *Message) *MessagePostedEvent {
	preview := msg.Body
	if len(preview) > messagePreviewLength {
		preview = preview[:messagePreviewLength]
	}
	return &MessagePostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MessagePosted", "Conversation", c.ID, c.PracticeID),
		ConversationID:  c.ID,
		Subject:         c.Subject,
		MatterID:        c.MatterID,
		MessageID:       msg.ID,
		SenderID:        msg.SenderID,
		SenderKind:      msg.SenderKind,
		Preview:         preview,
	}
}
