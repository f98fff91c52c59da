package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/notification"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationService manages user notifications
type NotificationService struct {
	notificationRepo notification.NotificationRepository
	logger           *zap.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo notification.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// NotifyInput contains the fields for creating a notification
type NotifyInput struct {
	RecipientID uuid.UUID
	Kind        notification.Kind
	Channel     notification.Channel
	Title       string
	Body        string
	RefID       *uuid.UUID
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	Channel   string     `json:"channel"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	RefID     *uuid.UUID `json:"ref_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notify creates a notification for a recipient
func (s *NotificationService) Notify(ctx context.Context, practiceID uuid.UUID, input NotifyInput) (*NotificationResponse, error) {
	n, err := notification.NewNotification(practiceID, input.RecipientID, input.Kind, input.Channel, input.Title, input.Body)
	if err != nil {
		return nil, err
	}
	if input.RefID != nil {
		n.SetRef(*input.RefID)
	}

	if err := s.notificationRepo.Save(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	return toNotificationResponse(n), nil
}

// ListForRecipient returns a user's notifications, newest first
func (s *NotificationService) ListForRecipient(ctx context.Context, practiceID, recipientID uuid.UUID, filter shared.Filter) ([]NotificationResponse, error) {
	notifications, err := s.notificationRepo.FindByRecipient(ctx, practiceID, recipientID, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, *toNotificationResponse(&notifications[i]))
	}
	return responses, nil
}

// CountUnread counts a user's unread notifications
func (s *NotificationService) CountUnread(ctx context.Context, practiceID, recipientID uuid.UUID) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, practiceID, recipientID)
}

// MarkRead marks a notification as read. Only the recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, practiceID, recipientID, notificationID uuid.UUID) error {
	n, err := s.notificationRepo.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "Notification not found")
		}
		return err
	}
	if n.PracticeID != practiceID || n.RecipientID != recipientID {
		return shared.NewDomainError("NOT_FOUND", "Notification not found")
	}

	n.MarkRead()
	if err := s.notificationRepo.Save(ctx, n); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// MarkAllRead marks all of a user's notifications as read
func (s *NotificationService) MarkAllRead(ctx context.Context, practiceID, recipientID uuid.UUID) error {
	return s.notificationRepo.MarkAllRead(ctx, practiceID, recipientID)
}

func toNotificationResponse(n *notification.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Channel:   string(n.Channel),
		Title:     n.Title,
		Body:      n.Body,
		RefID:     n.RefID,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
