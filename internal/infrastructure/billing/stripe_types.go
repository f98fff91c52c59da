package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// Processor is the payment-processor surface the application layer depends
// on. StripeAdapter is the production implementation; tests substitute mocks.
type Processor interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*CustomerOutput, error)
	GetCustomer(ctx context.Context, customerID string) (*CustomerOutput, error)
	UpdateCustomer(ctx context.Context, customerID string, input CreateCustomerInput) (*CustomerOutput, error)

	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*SubscriptionOutput, error)
	UpdateSubscriptionPlan(ctx context.Context, input UpdateSubscriptionInput) (*SubscriptionOutput, error)
	CancelSubscription(ctx context.Context, input CancelSubscriptionInput) (*SubscriptionOutput, error)
	ResumeSubscription(ctx context.Context, practiceID uuid.UUID, subscriptionID string) (*SubscriptionOutput, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionOutput, error)

	CreatePaymentIntent(ctx context.Context, input CreatePaymentIntentInput) (*PaymentIntentOutput, error)
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntentOutput, error)

	GetAccount(ctx context.Context, accountID string) (*AccountOutput, error)
}

// CreateCustomerInput carries the fields for creating or updating a
// Stripe customer
type CreateCustomerInput struct {
	PracticeID  uuid.UUID
	ClientID    *uuid.UUID
	Email       string
	Name        string
	Phone       string
	Description string
	Metadata    map[string]string
}

// CustomerOutput is the customer state returned by Stripe
type CustomerOutput struct {
	CustomerID string
	Email      string
	Name       string
	CreatedAt  time.Time
}

// CreateSubscriptionInput carries the fields for creating a platform
// subscription
type CreateSubscriptionInput struct {
	PracticeID      uuid.UUID
	CustomerID      string
	Plan            billing.SubscriptionPlan
	PriceID         string // optional override; resolved from Plan when empty
	TrialDays       int
	PaymentMethodID string
	Metadata        map[string]string
}

// UpdateSubscriptionInput carries the fields for a plan change
type UpdateSubscriptionInput struct {
	PracticeID        uuid.UUID
	SubscriptionID    string
	NewPlan           billing.SubscriptionPlan
	NewPriceID        string // optional override; resolved from NewPlan when empty
	ProrationBehavior string // defaults to create_prorations
	CancelAtPeriodEnd bool
}

// CancelSubscriptionInput carries the fields for a cancellation
type CancelSubscriptionInput struct {
	PracticeID     uuid.UUID
	SubscriptionID string
	AtPeriodEnd    bool
	Reason         string
}

// SubscriptionOutput is the subscription state returned by Stripe
type SubscriptionOutput struct {
	SubscriptionID     string
	CustomerID         string
	Status             billing.SubscriptionStatus
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	TrialEnd           *time.Time
	CanceledAt         *time.Time
	LatestInvoiceID    string
	ClientSecret       string
}

// Snapshot converts the processor state into the reconciliation snapshot
// applied to the local Subscription aggregate.
func (o *SubscriptionOutput) Snapshot() billing.SyncSnapshot {
	return billing.SyncSnapshot{
		Status:             o.Status,
		PriceID:            o.PriceID,
		CurrentPeriodStart: o.CurrentPeriodStart,
		CurrentPeriodEnd:   o.CurrentPeriodEnd,
		CancelAtPeriodEnd:  o.CancelAtPeriodEnd,
		TrialEndsAt:        o.TrialEnd,
		CanceledAt:         o.CanceledAt,
	}
}

// CreatePaymentIntentInput carries the fields for collecting payment on a
// client invoice
type CreatePaymentIntentInput struct {
	PracticeID  uuid.UUID
	InvoiceID   uuid.UUID
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
}

// PaymentIntentOutput is the payment intent state returned by Stripe
type PaymentIntentOutput struct {
	PaymentIntentID string
	ClientSecret    string
	Status          string
	AmountMinor     int64
	Currency        string
}

// AccountOutput is the connected-account capability state returned by Stripe
type AccountOutput struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}
