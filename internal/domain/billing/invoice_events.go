package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceCreatedEvent is raised when a new draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID   `json:"invoice_id"`
	InvoiceNumber string      `json:"invoice_number"`
	Kind          InvoiceKind `json:"kind"`
	ClientID      *uuid.UUID  `json:"client_id,omitempty"`
	ClientName    string      `json:"client_name,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Kind:            inv.Kind,
		ClientID:        inv.ClientID,
		ClientName:      inv.ClientName,
	}
}

// InvoiceFinalizedEvent is raised when a draft invoice is issued
type InvoiceFinalizedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Kind          InvoiceKind     `json:"kind"`
	ClientID      *uuid.UUID      `json:"client_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceFinalizedEvent) EventType() string {
	return "InvoiceFinalized"
}

// NewInvoiceFinalizedEvent creates a new InvoiceFinalizedEvent
func NewInvoiceFinalizedEvent(inv *Invoice) *InvoiceFinalizedEvent {
	return &InvoiceFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceFinalized", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Kind:            inv.Kind,
		ClientID:        inv.ClientID,
		TotalAmount:     inv.TotalAmount,
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is raised when an invoice is fully paid
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Kind          InvoiceKind     `json:"kind"`
	ClientID      *uuid.UUID      `json:"client_id,omitempty"`
	ClientName    string          `json:"client_name,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return "InvoicePaid"
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaid", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Kind:            inv.Kind,
		ClientID:        inv.ClientID,
		ClientName:      inv.ClientName,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      inv.PaidAmount,
		PaidAt:          paidAt,
	}
}

// InvoicePartiallyPaidEvent is raised when a payment is applied that leaves
// an outstanding balance
type InvoicePartiallyPaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	PaymentAmount     decimal.Decimal `json:"payment_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

// EventType returns the event type name
func (e *InvoicePartiallyPaidEvent) EventType() string {
	return "InvoicePartiallyPaid"
}

// NewInvoicePartiallyPaidEvent creates a new InvoicePartiallyPaidEvent
func NewInvoicePartiallyPaidEvent(inv *Invoice, paymentAmount valueobject.Money) *InvoicePartiallyPaidEvent {
	return &InvoicePartiallyPaidEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("InvoicePartiallyPaid", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		PaymentAmount:     paymentAmount.Amount(),
		TotalAmount:       inv.TotalAmount,
		PaidAmount:        inv.PaidAmount,
		OutstandingAmount: inv.OutstandingAmount,
	}
}

// InvoiceOverdueEvent is raised when an open invoice passes its due date
type InvoiceOverdueEvent struct {
	shared.BaseDomainEvent
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	ClientID          *uuid.UUID      `json:"client_id,omitempty"`
	ClientName        string          `json:"client_name,omitempty"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceOverdueEvent) EventType() string {
	return "InvoiceOverdue"
}

// NewInvoiceOverdueEvent creates a new InvoiceOverdueEvent
func NewInvoiceOverdueEvent(inv *Invoice) *InvoiceOverdueEvent {
	return &InvoiceOverdueEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("InvoiceOverdue", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		ClientID:          inv.ClientID,
		ClientName:        inv.ClientName,
		OutstandingAmount: inv.OutstandingAmount,
		DueDate:           inv.DueDate,
	}
}

// InvoiceVoidedEvent is raised when an invoice is voided
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	InvoiceNumber  string        `json:"invoice_number"`
	PreviousStatus InvoiceStatus `json:"previous_status"`
	Reason         string        `json:"reason"`
}

// EventType returns the event type name
func (e *InvoiceVoidedEvent) EventType() string {
	return "InvoiceVoided"
}

// NewInvoiceVoidedEvent creates a new InvoiceVoidedEvent
func NewInvoiceVoidedEvent(inv *Invoice, previousStatus InvoiceStatus) *InvoiceVoidedEvent {
	return &InvoiceVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceVoided", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PreviousStatus:  previousStatus,
		Reason:          inv.VoidReason,
	}
}

// InvoiceUncollectibleEvent is raised when an invoice is written off
type InvoiceUncollectibleEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	PreviousStatus   InvoiceStatus   `json:"previous_status"`
	WrittenOffAmount decimal.Decimal `json:"written_off_amount"`
	Reason           string          `json:"reason"`
}

// EventType returns the event type name
func (e *InvoiceUncollectibleEvent) EventType() string {
	return "InvoiceUncollectible"
}

// NewInvoiceUncollectibleEvent creates a new InvoiceUncollectibleEvent
func NewInvoiceUncollectibleEvent(inv *Invoice, previousStatus InvoiceStatus, writtenOff decimal.Decimal) *InvoiceUncollectibleEvent {
	return &InvoiceUncollectibleEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("InvoiceUncollectible", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		PreviousStatus:   previousStatus,
		WrittenOffAmount: writtenOff,
		Reason:           inv.WriteOffReason,
	}
}

// InvoicePaymentFailedEvent is raised when a Stripe payment attempt against
// an invoice fails. The invoice status does not change; the failure is
// surfaced so staff can follow up.
type InvoicePaymentFailedEvent struct {
	shared.BaseDomainEvent
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	PaymentIntentID string          `json:"payment_intent_id"`
	FailureMessage  string          `json:"failure_message"`
	AttemptedAmount decimal.Decimal `json:"attempted_amount"`
}

// EventType returns the event type name
func (e *InvoicePaymentFailedEvent) EventType() string {
	return "InvoicePaymentFailed"
}

// NewInvoicePaymentFailedEvent creates a new InvoicePaymentFailedEvent
func NewInvoicePaymentFailedEvent(inv *Invoice, paymentIntentID, failureMessage string, attempted decimal.Decimal) *InvoicePaymentFailedEvent {
	return &InvoicePaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaymentFailed", "Invoice", inv.ID, inv.PracticeID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentIntentID: paymentIntentID,
		FailureMessage:  failureMessage,
		AttemptedAmount: attempted,
	}
}
