package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/chat"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/notification"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MatterNotificationHandler notifies the assigned mediator when a matter
// changes state.
type MatterNotificationHandler struct {
	notificationRepo notification.NotificationRepository
	userRepo         identity.UserRepository
	logger           *zap.Logger
}

// NewMatterNotificationHandler creates a new MatterNotificationHandler
func NewMatterNotificationHandler(
	notificationRepo notification.NotificationRepository,
	userRepo identity.UserRepository,
	logger *zap.Logger,
) *MatterNotificationHandler {
	return &MatterNotificationHandler{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

// EventTypes returns the matter events this handler subscribes to
func (h *MatterNotificationHandler) EventTypes() []string {
	return []string{
		"MatterOpened",
		"MatterResolved",
	}
}

// Handle notifies the mediator responsible for the matter. Matters
// without an assigned mediator produce no notification.
func (h *MatterNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		title     string
		body      string
		ref       = event.AggregateID()
		recipient *identity.User
	)

	practiceID := event.PracticeID()

	switch e := event.(type) {
	case *matter.MatterOpenedEvent:
		if e.MediatorID == nil {
			return nil
		}
		u, err := h.loadActiveUser(ctx, practiceID, event, *e.MediatorID)
		if err != nil || u == nil {
			return err
		}
		recipient = u
		title = fmt.Sprintf("Matter %s is now active", e.MatterNumber)
		body = "Mediation has started on a matter assigned to you."
		ref = e.MatterID
	case *matter.MatterResolvedEvent:
		if e.MediatorID == nil {
			return nil
		}
		u, err := h.loadActiveUser(ctx, practiceID, event, *e.MediatorID)
		if err != nil || u == nil {
			return err
		}
		recipient = u
		title = fmt.Sprintf("Matter %s %s", e.MatterNumber, strings.ToLower(string(e.Status)))
		body = fmt.Sprintf("The matter for %s reached its final state: %s.", clientLabel(e.ClientName), e.Status)
		ref = e.MatterID
	default:
		h.logger.Warn("Unhandled event type in matter notification handler",
			zap.String("event_type", event.EventType()))
		return nil
	}

	n, err := notification.NewNotification(practiceID, recipient.ID, notification.KindMatterUpdate,
		notification.ChannelInApp, title, body)
	if err != nil {
		return err
	}
	n.SetRef(ref)

	if err := h.notificationRepo.Save(ctx, n); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// loadActiveUser resolves the mediator; a missing or inactive user is
// logged and skipped rather than failing the event.
func (h *MatterNotificationHandler) loadActiveUser(ctx context.Context, practiceID uuid.UUID, event shared.DomainEvent, userID uuid.UUID) (*identity.User, error) {
	u, err := h.userRepo.FindByIDForPractice(ctx, practiceID, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("Mediator not found for matter notification",
				zap.String("user_id", userID.String()),
				zap.String("event_type", event.EventType()))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load mediator: %w", err)
	}
	if u.Status != identity.UserStatusActive {
		return nil, nil
	}
	return u, nil
}

// ChatNotificationHandler notifies practice users when a message lands in
// one of their conversations.
type ChatNotificationHandler struct {
	notificationRepo notification.NotificationRepository
	userRepo         identity.UserRepository
	logger           *zap.Logger
}

// NewChatNotificationHandler creates a new ChatNotificationHandler
func NewChatNotificationHandler(
	notificationRepo notification.NotificationRepository,
	userRepo identity.UserRepository,
	logger *zap.Logger,
) *ChatNotificationHandler {
	return &ChatNotificationHandler{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

// EventTypes returns the chat events this handler subscribes to
func (h *ChatNotificationHandler) EventTypes() []string {
	return []string{"MessagePosted"}
}

// Handle fans the message out to every active practice user except the
// sender. Client senders notify all staff.
func (h *ChatNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*chat.MessagePostedEvent)
	if !ok {
		h.logger.Warn("Unhandled event type in chat notification handler",
			zap.String("event_type", event.EventType()))
		return nil
	}

	practiceID := event.PracticeID()
	users, err := h.userRepo.FindAllForPractice(ctx, practiceID, shared.Filter{})
	if err != nil {
		return fmt.Errorf("failed to load practice users: %w", err)
	}

	title := fmt.Sprintf("New message in %s", e.Subject)

	for i := range users {
		u := &users[i]
		if u.Status != identity.UserStatusActive {
			continue
		}
		if e.SenderKind == chat.ParticipantKindUser && u.ID == e.SenderID {
			continue
		}

		n, err := notification.NewNotification(practiceID, u.ID, notification.KindNewMessage,
			notification.ChannelInApp, title, e.Preview)
		if err != nil {
			return err
		}
		n.SetRef(e.ConversationID)

		if err := h.notificationRepo.Save(ctx, n); err != nil {
			return fmt.Errorf("failed to save notification: %w", err)
		}
	}

	return nil
}
