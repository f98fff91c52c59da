package billing

import (
	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// Event type constants for Stripe webhook reconciliation events
const (
	EventTypeStripeSubscriptionCreated = "StripeSubscriptionCreated"
	EventTypeStripeSubscriptionUpdated = "StripeSubscriptionUpdated"
	EventTypeStripeSubscriptionDeleted = "StripeSubscriptionDeleted"
	EventTypeStripeInvoicePaid         = "StripeInvoicePaid"
	EventTypeStripePaymentFailed       = "StripePaymentFailed"
	EventTypeStripeAccountUpdated      = "StripeAccountUpdated"
)

// Aggregate type constant
const AggregateTypeStripeBilling = "StripeBilling"

// StripeSubscriptionEvent is raised after a subscription webhook has been
// reconciled against the local subscription record
type StripeSubscriptionEvent struct {
	shared.BaseDomainEvent
	SubscriptionID string `json:"subscription_id"`
	Action         string `json:"action"` // subscription_created, subscription_updated, subscription_deleted
}

// NewStripeSubscriptionEvent creates a new StripeSubscriptionEvent
func NewStripeSubscriptionEvent(practiceID uuid.UUID, action, subscriptionID string) *StripeSubscriptionEvent {
	var eventType string
	switch action {
	case "subscription_created":
		eventType = EventTypeStripeSubscriptionCreated
	case "subscription_updated":
		eventType = EventTypeStripeSubscriptionUpdated
	case "subscription_deleted":
		eventType = EventTypeStripeSubscriptionDeleted
	default:
		eventType = "StripeSubscription" + action
	}

	return &StripeSubscriptionEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStripeBilling, practiceID, practiceID),
		SubscriptionID:  subscriptionID,
		Action:          action,
	}
}

// StripePaymentEvent is raised after a payment webhook has been reconciled
// against the local invoice
type StripePaymentEvent struct {
	shared.BaseDomainEvent
	InvoiceID string `json:"invoice_id"`
	Action    string `json:"action"` // invoice_paid, payment_failed
}

// NewStripePaymentEvent creates a new StripePaymentEvent
func NewStripePaymentEvent(practiceID uuid.UUID, action, invoiceID string) *StripePaymentEvent {
	var eventType string
	switch action {
	case "invoice_paid":
		eventType = EventTypeStripeInvoicePaid
	case "payment_failed":
		eventType = EventTypeStripePaymentFailed
	default:
		eventType = "StripePayment" + action
	}

	return &StripePaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStripeBilling, practiceID, practiceID),
		InvoiceID:       invoiceID,
		Action:          action,
	}
}

// StripeAccountEvent is raised when a connected account's capabilities change
type StripeAccountEvent struct {
	shared.BaseDomainEvent
	AccountID      string `json:"account_id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

// NewStripeAccountEvent creates a new StripeAccountEvent
func NewStripeAccountEvent(practiceID uuid.UUID, accountID string, chargesEnabled, payoutsEnabled bool) *StripeAccountEvent {
	return &StripeAccountEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStripeAccountUpdated, AggregateTypeStripeBilling, practiceID, practiceID),
		AccountID:       accountID,
		ChargesEnabled:  chargesEnabled,
		PayoutsEnabled:  payoutsEnabled,
	}
}
