package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ClientID  *uuid.UUID       // Filter by client
	MatterID  *uuid.UUID       // Filter by matter
	Kind      *InvoiceKind     // Filter by invoice kind
	Status    *InvoiceStatus   // Filter by status
	FromDate  *time.Time       // Filter by creation date range start
	ToDate    *time.Time       // Filter by creation date range end
	DueFrom   *time.Time       // Filter by due date range start
	DueTo     *time.Time       // Filter by due date range end
	PastDue   *bool            // Filter only past-due invoices
	MinAmount *decimal.Decimal // Filter by minimum outstanding amount
	MaxAmount *decimal.Decimal // Filter by maximum outstanding amount
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForPractice finds an invoice by ID for a specific practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*Invoice, error)

	// FindByInvoiceNumber finds by invoice number for a practice
	FindByInvoiceNumber(ctx context.Context, practiceID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindByStripePaymentIntentID finds the invoice linked to a Stripe payment intent.
	// Used by webhook reconciliation; not practice-scoped because the webhook
	// arrives without practice context.
	FindByStripePaymentIntentID(ctx context.Context, paymentIntentID string) (*Invoice, error)

	// FindByStripeInvoiceID finds the invoice linked to a Stripe invoice
	FindByStripeInvoiceID(ctx context.Context, stripeInvoiceID string) (*Invoice, error)

	// FindAllForPractice finds all invoices for a practice with filtering
	FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindByClient finds invoices for a client
	FindByClient(ctx context.Context, practiceID, clientID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindByMatter finds invoices attached to a matter
	FindByMatter(ctx context.Context, practiceID, matterID uuid.UUID) ([]Invoice, error)

	// FindOpenPastDue finds OPEN invoices whose due date has passed, across
	// all practices. Used by the overdue sweep.
	FindOpenPastDue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// Delete soft deletes an invoice
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForPractice counts invoices for a practice with optional filters
	CountForPractice(ctx context.Context, practiceID uuid.UUID, filter InvoiceFilter) (int64, error)

	// CountByStatus counts invoices by status for a practice
	CountByStatus(ctx context.Context, practiceID uuid.UUID, status InvoiceStatus) (int64, error)

	// SumOutstandingForPractice sums the outstanding balance across a
	// practice's non-terminal invoices
	SumOutstandingForPractice(ctx context.Context, practiceID uuid.UUID) (decimal.Decimal, error)

	// NextInvoiceNumber generates the next sequential invoice number for a
	// practice on the given date (format INV-YYYYMMDD-NNNNN)
	NextInvoiceNumber(ctx context.Context, practiceID uuid.UUID, date time.Time) (string, error)
}

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	// FindByID finds a subscription by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByPracticeID finds the subscription belonging to a practice
	FindByPracticeID(ctx context.Context, practiceID uuid.UUID) (*Subscription, error)

	// FindByStripeSubscriptionID finds the subscription linked to a Stripe
	// subscription. Used by webhook reconciliation.
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)

	// FindByStripeCustomerID finds the subscription linked to a Stripe customer
	FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*Subscription, error)

	// Save creates or updates a subscription
	Save(ctx context.Context, subscription *Subscription) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, subscription *Subscription) error

	// Delete soft deletes a subscription
	Delete(ctx context.Context, id uuid.UUID) error
}
