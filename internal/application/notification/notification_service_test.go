package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/notification"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotificationRepo struct {
	notification.NotificationRepository

	mu    sync.Mutex
	saved []*notification.Notification
}

func (f *fakeNotificationRepo) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.saved {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeNotificationRepo) FindByRecipient(ctx context.Context, practiceID, recipientID uuid.UUID, filter shared.Filter) ([]notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.Notification
	for _, n := range f.saved {
		if n.PracticeID == practiceID && n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, practiceID, recipientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.saved {
		if n.PracticeID == practiceID && n.RecipientID == recipientID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) Save(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.saved {
		if f.saved[i].ID == n.ID {
			f.saved[i] = n
			return nil
		}
	}
	f.saved = append(f.saved, n)
	return nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, practiceID, recipientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.saved {
		if n.PracticeID == practiceID && n.RecipientID == recipientID {
			n.MarkRead()
		}
	}
	return nil
}

type fakeUserRepo struct {
	identity.UserRepository

	users []identity.User
}

func (f *fakeUserRepo) FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]identity.User, error) {
	var out []identity.User
	for _, u := range f.users {
		if u.PracticeID == practiceID {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestNotificationService_MarkRead(t *testing.T) {
	repo := &fakeNotificationRepo{}
	service := NewNotificationService(repo, zap.NewNop())

	practiceID := uuid.New()
	recipientID := uuid.New()

	created, err := service.Notify(context.Background(), practiceID, NotifyInput{
		RecipientID: recipientID,
		Kind:        notification.KindMatterUpdate,
		Channel:     notification.ChannelInApp,
		Title:       "Session scheduled",
		Body:        "A session was scheduled for Thursday.",
	})
	require.NoError(t, err)

	unread, err := service.CountUnread(context.Background(), practiceID, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// Another user cannot read someone else's notification
	err = service.MarkRead(context.Background(), practiceID, uuid.New(), created.ID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)

	require.NoError(t, service.MarkRead(context.Background(), practiceID, recipientID, created.ID))

	unread, err = service.CountUnread(context.Background(), practiceID, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	repo := &fakeNotificationRepo{}
	service := NewNotificationService(repo, zap.NewNop())

	practiceID := uuid.New()
	recipientID := uuid.New()

	for _, title := range []string{"First", "Second", "Third"} {
		_, err := service.Notify(context.Background(), practiceID, NotifyInput{
			RecipientID: recipientID,
			Kind:        notification.KindNewMessage,
			Channel:     notification.ChannelInApp,
			Title:       title,
		})
		require.NoError(t, err)
	}

	require.NoError(t, service.MarkAllRead(context.Background(), practiceID, recipientID))

	unread, err := service.CountUnread(context.Background(), practiceID, recipientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

type billingHandlerFixture struct {
	handler    *BillingNotificationHandler
	repo       *fakeNotificationRepo
	practiceID uuid.UUID
	ownerID    uuid.UUID
}

func newBillingHandlerFixture(t *testing.T) *billingHandlerFixture {
	t.Helper()

	practiceID := uuid.New()

	owner, err := identity.NewActiveUser(practiceID, "owner@cedarlane.example.com", "correct-horse-9", identity.UserRoleOwner)
	require.NoError(t, err)
	staff, err := identity.NewActiveUser(practiceID, "staff@cedarlane.example.com", "correct-horse-9", identity.UserRoleStaff)
	require.NoError(t, err)
	deactivated, err := identity.NewActiveUser(practiceID, "former@cedarlane.example.com", "correct-horse-9", identity.UserRoleOwner)
	require.NoError(t, err)
	require.NoError(t, deactivated.Deactivate())

	repo := &fakeNotificationRepo{}
	handler := NewBillingNotificationHandler(repo, &fakeUserRepo{
		users: []identity.User{*owner, *staff, *deactivated},
	}, zap.NewNop())

	return &billingHandlerFixture{
		handler:    handler,
		repo:       repo,
		practiceID: practiceID,
		ownerID:    owner.ID,
	}
}

func TestBillingNotificationHandler_InvoiceOverdue(t *testing.T) {
	f := newBillingHandlerFixture(t)

	invoiceID := uuid.New()
	clientID := uuid.New()
	event := &billing.InvoiceOverdueEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("InvoiceOverdue", "Invoice", invoiceID, f.practiceID),
		InvoiceID:         invoiceID,
		InvoiceNumber:     "INV-20260801-00042",
		ClientID:          &clientID,
		ClientName:        "Jordan Reyes",
		OutstandingAmount: decimal.NewFromFloat(450.00),
	}

	require.NoError(t, f.handler.Handle(context.Background(), event))

	// Only the active owner is notified; staff and deactivated owners are skipped
	require.Len(t, f.repo.saved, 1)
	n := f.repo.saved[0]
	assert.Equal(t, f.ownerID, n.RecipientID)
	assert.Equal(t, notification.KindInvoiceOverdue, n.Kind)
	assert.Equal(t, notification.ChannelInApp, n.Channel)
	assert.Contains(t, n.Title, "INV-20260801-00042")
	assert.Contains(t, n.Body, "Jordan Reyes")
	assert.Contains(t, n.Body, "450.00")
	require.NotNil(t, n.RefID)
	assert.Equal(t, invoiceID, *n.RefID)
}

func TestBillingNotificationHandler_PaymentFailed(t *testing.T) {
	f := newBillingHandlerFixture(t)

	invoiceID := uuid.New()
	event := &billing.InvoicePaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaymentFailed", "Invoice", invoiceID, f.practiceID),
		InvoiceID:       invoiceID,
		InvoiceNumber:   "INV-20260801-00007",
		PaymentIntentID: "pi_failed_1",
		FailureMessage:  "Your card was declined.",
		AttemptedAmount: decimal.NewFromFloat(120.00),
	}

	require.NoError(t, f.handler.Handle(context.Background(), event))

	require.Len(t, f.repo.saved, 1)
	n := f.repo.saved[0]
	assert.Equal(t, notification.KindPaymentFailed, n.Kind)
	assert.Contains(t, n.Body, "Your card was declined.")
}

func TestBillingNotificationHandler_SubscriptionStatusChanged(t *testing.T) {
	f := newBillingHandlerFixture(t)

	subscriptionID := uuid.New()
	event := &billing.SubscriptionStatusChangedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent("SubscriptionStatusChanged", "Subscription", subscriptionID, f.practiceID),
		SubscriptionID:       subscriptionID,
		StripeSubscriptionID: "sub_123",
		PreviousStatus:       billing.SubscriptionStatusActive,
		NewStatus:            billing.SubscriptionStatusPastDue,
	}

	require.NoError(t, f.handler.Handle(context.Background(), event))

	require.Len(t, f.repo.saved, 1)
	n := f.repo.saved[0]
	assert.Equal(t, notification.KindSubscriptionChange, n.Kind)
	assert.Contains(t, n.Body, string(billing.SubscriptionStatusPastDue))
	require.NotNil(t, n.RefID)
	assert.Equal(t, subscriptionID, *n.RefID)
}

func TestBillingNotificationHandler_IgnoresUnknownEvents(t *testing.T) {
	f := newBillingHandlerFixture(t)

	event := &billing.SubscriptionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SubscriptionCreated", "Subscription", uuid.New(), f.practiceID),
	}

	require.NoError(t, f.handler.Handle(context.Background(), event))
	assert.Empty(t, f.repo.saved)
}
