package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// NotificationRepository defines the interface for notification persistence
type NotificationRepository interface {
	// FindByID finds a notification by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)

	// FindByRecipient lists notifications for a user, newest first
	FindByRecipient(ctx context.Context, practiceID, recipientID uuid.UUID, filter shared.Filter) ([]Notification, error)

	// CountUnread counts unread notifications for a user
	CountUnread(ctx context.Context, practiceID, recipientID uuid.UUID) (int64, error)

	// Save creates or updates a notification
	Save(ctx context.Context, notification *Notification) error

	// MarkAllRead marks all of a user's notifications as read
	MarkAllRead(ctx context.Context, practiceID, recipientID uuid.UUID) error

	// Delete deletes a notification
	Delete(ctx context.Context, id uuid.UUID) error
}
