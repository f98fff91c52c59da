package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/notification"
)

// NotificationModel is the persistence model for the Notification aggregate root.
type NotificationModel struct {
	PracticeAggregateModel
	RecipientID uuid.UUID            `gorm:"type:uuid;not null;index"`
	Kind        notification.Kind    `gorm:"type:varchar(30);not null;index"`
	Channel     notification.Channel `gorm:"type:varchar(10);not null"`
	Title       string               `gorm:"type:varchar(300);not null"`
	Body        string               `gorm:"type:text"`
	RefID       *uuid.UUID           `gorm:"type:uuid;index"`
	ReadAt      *time.Time           `gorm:"index"`
	SentAt      *time.Time
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification entity.
func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		RecipientID:           m.RecipientID,
		Kind:                  m.Kind,
		Channel:               m.Channel,
		Title:                 m.Title,
		Body:                  m.Body,
		RefID:                 m.RefID,
		ReadAt:                m.ReadAt,
		SentAt:                m.SentAt,
	}
}

// FromDomain populates the persistence model from a domain Notification entity.
func (m *NotificationModel) FromDomain(n *notification.Notification) {
	m.FromDomainPracticeAggregateRoot(n.PracticeAggregateRoot)
	m.RecipientID = n.RecipientID
	m.Kind = n.Kind
	m.Channel = n.Channel
	m.Title = n.Title
	m.Body = n.Body
	m.RefID = n.RefID
	m.ReadAt = n.ReadAt
	m.SentAt = n.SentAt
}

// NotificationModelFromDomain creates a new persistence model from a domain Notification.
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	m := &NotificationModel{}
	m.FromDomain(n)
	return m
}
