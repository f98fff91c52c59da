package notification

import (
	"context"
	"fmt"

	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/notification"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BillingNotificationHandler turns billing domain events into in-app
// notifications for the users who can act on them (billing-managing roles).
type BillingNotificationHandler struct {
	notificationRepo notification.NotificationRepository
	userRepo         identity.UserRepository
	logger           *zap.Logger
}

// NewBillingNotificationHandler creates a new BillingNotificationHandler
func NewBillingNotificationHandler(
	notificationRepo notification.NotificationRepository,
	userRepo identity.UserRepository,
	logger *zap.Logger,
) *BillingNotificationHandler {
	return &BillingNotificationHandler{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

// EventTypes returns the billing events this handler subscribes to
func (h *BillingNotificationHandler) EventTypes() []string {
	return []string{
		"InvoicePaid",
		"InvoiceOverdue",
		"InvoicePaymentFailed",
		"SubscriptionStatusChanged",
	}
}

// Handle fans the event out to every active billing manager of the practice
func (h *BillingNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		kind  notification.Kind
		title string
		body  string
		ref   = event.AggregateID()
	)

	switch e := event.(type) {
	case *billing.InvoicePaidEvent:
		kind = notification.KindInvoicePaid
		title = fmt.Sprintf("Invoice %s paid", e.InvoiceNumber)
		body = fmt.Sprintf("%s paid in full (%s).", clientLabel(e.ClientName), e.PaidAmount.StringFixed(2))
		ref = e.InvoiceID
	case *billing.InvoiceOverdueEvent:
		kind = notification.KindInvoiceOverdue
		title = fmt.Sprintf("Invoice %s is overdue", e.InvoiceNumber)
		body = fmt.Sprintf("%s owes %s past the due date.", clientLabel(e.ClientName), e.OutstandingAmount.StringFixed(2))
		ref = e.InvoiceID
	case *billing.InvoicePaymentFailedEvent:
		kind = notification.KindPaymentFailed
		title = fmt.Sprintf("Payment failed on invoice %s", e.InvoiceNumber)
		body = fmt.Sprintf("A payment of %s failed: %s", e.AttemptedAmount.StringFixed(2), e.FailureMessage)
		ref = e.InvoiceID
	case *billing.SubscriptionStatusChangedEvent:
		kind = notification.KindSubscriptionChange
		title = "Subscription status changed"
		body = fmt.Sprintf("Your subscription moved from %s to %s.", e.PreviousStatus, e.NewStatus)
		ref = e.SubscriptionID
	default:
		// Subscribed types and this switch must stay in sync
		h.logger.Warn("Unhandled event type in billing notification handler",
			zap.String("event_type", event.EventType()))
		return nil
	}

	practiceID := event.PracticeID()
	users, err := h.userRepo.FindAllForPractice(ctx, practiceID, shared.Filter{})
	if err != nil {
		return fmt.Errorf("failed to load practice users: %w", err)
	}

	for i := range users {
		u := &users[i]
		if u.Status != identity.UserStatusActive || !u.Role.CanManageBilling() {
			continue
		}

		n, err := notification.NewNotification(practiceID, u.ID, kind, notification.ChannelInApp, title, body)
		if err != nil {
			return err
		}
		n.SetRef(ref)

		if err := h.notificationRepo.Save(ctx, n); err != nil {
			return fmt.Errorf("failed to save notification: %w", err)
		}
	}

	h.logger.Debug("Billing notification dispatched",
		zap.String("practice_id", practiceID.String()),
		zap.String("event_type", event.EventType()))

	return nil
}

func clientLabel(name string) string {
	if name == "" {
		return "The client"
	}
	return name
}
