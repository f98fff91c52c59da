package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// Channel is how a notification reaches its recipient
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
)

// IsValid checks if the channel is valid
func (c Channel) IsValid() bool {
	return c == ChannelInApp || c == ChannelEmail
}

// Kind categorizes notifications so recipients can filter them
type Kind string

const (
	KindInvoicePaid        Kind = "INVOICE_PAID"
	KindInvoiceOverdue     Kind = "INVOICE_OVERDUE"
	KindPaymentFailed      Kind = "PAYMENT_FAILED"
	KindSubscriptionChange Kind = "SUBSCRIPTION_CHANGE"
	KindMatterUpdate       Kind = "MATTER_UPDATE"
	KindNewMessage         Kind = "NEW_MESSAGE"
)

// Notification is the aggregate root for a message delivered to a user
type Notification struct {
	shared.PracticeAggregateRoot
	RecipientID uuid.UUID  `json:"recipient_id"`
	Kind        Kind       `json:"kind"`
	Channel     Channel    `json:"channel"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	RefID       *uuid.UUID `json:"ref_id"` // The aggregate the notification is about
	ReadAt      *time.Time `json:"read_at"`
	SentAt      *time.Time `json:"sent_at"` // For email channel, when dispatch succeeded
}

// NewNotification creates an unread notification
func NewNotification(practiceID, recipientID uuid.UUID, kind Kind, channel Channel, title, body string) (*Notification, error) {
	if recipientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RECIPIENT", "Recipient ID cannot be empty")
	}
	if !channel.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Notification channel is not valid")
	}
	if strings.TrimSpace(title) == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Notification title cannot be empty")
	}

	return &Notification{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		RecipientID:           recipientID,
		Kind:                  kind,
		Channel:               channel,
		Title:                 title,
		Body:                  body,
	}, nil
}

// SetRef links the notification to the aggregate it describes
func (n *Notification) SetRef(refID uuid.UUID) {
	n.RefID = &refID
}

// MarkRead records when the notification was read. Idempotent.
func (n *Notification) MarkRead() {
	if n.ReadAt != nil {
		return
	}
	now := time.Now()
	n.ReadAt = &now
	n.UpdatedAt = now
	n.IncrementVersion()
}

// MarkSent records successful dispatch for email notifications
func (n *Notification) MarkSent() {
	now := time.Now()
	n.SentAt = &now
	n.UpdatedAt = now
	n.IncrementVersion()
}

// IsRead returns true if the notification has been read
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
