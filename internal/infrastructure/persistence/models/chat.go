package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/chat"
)

// ConversationModel is the persistence model for the Conversation aggregate root.
type ConversationModel struct {
	PracticeAggregateModel
	Subject       string                  `gorm:"type:varchar(300);not null"`
	MatterID      *uuid.UUID              `gorm:"type:uuid;index"`
	Status        chat.ConversationStatus `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	LastMessageAt *time.Time              `gorm:"index"`
	MessageCount  int                     `gorm:"not null;default:0"`
	ClosedAt      *time.Time
}

// TableName returns the table name for GORM
func (ConversationModel) TableName() string {
	return "conversations"
}

// ToDomain converts the persistence model to a domain Conversation entity.
func (m *ConversationModel) ToDomain() *chat.Conversation {
	return &chat.Conversation{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		Subject:               m.Subject,
		MatterID:              m.MatterID,
		Status:                m.Status,
		LastMessageAt:         m.LastMessageAt,
		MessageCount:          m.MessageCount,
		ClosedAt:              m.ClosedAt,
	}
}

// FromDomain populates the persistence model from a domain Conversation entity.
func (m *ConversationModel) FromDomain(c *chat.Conversation) {
	m.FromDomainPracticeAggregateRoot(c.PracticeAggregateRoot)
	m.Subject = c.Subject
	m.MatterID = c.MatterID
	m.Status = c.Status
	m.LastMessageAt = c.LastMessageAt
	m.MessageCount = c.MessageCount
	m.ClosedAt = c.ClosedAt
}

// ConversationModelFromDomain creates a new persistence model from a domain Conversation.
func ConversationModelFromDomain(c *chat.Conversation) *ConversationModel {
	m := &ConversationModel{}
	m.FromDomain(c)
	return m
}

// MessageModel is the persistence model for the Message entity.
type MessageModel struct {
	BaseModel
	PracticeID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	ConversationID uuid.UUID            `gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	SenderKind     chat.ParticipantKind `gorm:"type:varchar(20);not null"`
	Body           string               `gorm:"type:text;not null"`
	ReadAt         *time.Time
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts the persistence model to a domain Message entity.
func (m *MessageModel) ToDomain() *chat.Message {
	return &chat.Message{
		BaseEntity:     m.BaseModel.ToDomain(),
		PracticeID:     m.PracticeID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderKind:     m.SenderKind,
		Body:           m.Body,
		ReadAt:         m.ReadAt,
	}
}

// FromDomain populates the persistence model from a domain Message entity.
func (m *MessageModel) FromDomain(msg *chat.Message) {
	m.FromDomainBaseEntity(msg.BaseEntity)
	m.PracticeID = msg.PracticeID
	m.ConversationID = msg.ConversationID
	m.SenderID = msg.SenderID
	m.SenderKind = msg.SenderKind
	m.Body = msg.Body
	m.ReadAt = msg.ReadAt
}

// MessageModelFromDomain creates a new persistence model from a domain Message.
func MessageModelFromDomain(msg *chat.Message) *MessageModel {
	m := &MessageModel{}
	m.FromDomain(msg)
	return m
}
