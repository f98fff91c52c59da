package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"         // Editable, not yet issued
	InvoiceStatusOpen          InvoiceStatus = "OPEN"          // Issued, awaiting payment
	InvoiceStatusPaid          InvoiceStatus = "PAID"          // Fully paid
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"       // Issued, past due date
	InvoiceStatusVoid          InvoiceStatus = "VOID"          // Voided before any payment
	InvoiceStatusUncollectible InvoiceStatus = "UNCOLLECTIBLE" // Written off
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusOpen, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusVoid, InvoiceStatusUncollectible:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusVoid || s == InvoiceStatusUncollectible
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusOverdue
}

// CanVoid returns true if the invoice can still be voided
func (s InvoiceStatus) CanVoid() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusOpen
}

// InvoiceKind distinguishes what an invoice bills for
type InvoiceKind string

const (
	InvoiceKindMatter       InvoiceKind = "MATTER"       // Client billing for a mediation matter
	InvoiceKindSubscription InvoiceKind = "SUBSCRIPTION" // Platform subscription charge to the practice
	InvoiceKindManual       InvoiceKind = "MANUAL"       // Ad-hoc invoice
)

// IsValid checks if the invoice kind is valid
func (k InvoiceKind) IsValid() bool {
	switch k {
	case InvoiceKindMatter, InvoiceKindSubscription, InvoiceKindManual:
		return true
	}
	return false
}

// LineItem is a value object describing one billed line, stored as JSONB
// within the Invoice aggregate.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// NewLineItem creates a line item and computes its amount
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) (*LineItem, error) {
	if description == "" {
		return nil, shared.NewDomainError("INVALID_LINE_ITEM", "Line item description cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_LINE_ITEM", "Line item quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_LINE_ITEM", "Line item unit price cannot be negative")
	}
	return &LineItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      quantity.Mul(unitPrice).Round(2),
	}, nil
}

// PaymentSource identifies where a payment record originated
type PaymentSource string

const (
	PaymentSourceStripe PaymentSource = "STRIPE" // Reconciled from a Stripe webhook
	PaymentSourceManual PaymentSource = "MANUAL" // Recorded by practice staff (check, wire)
)

// PaymentRecord represents a payment applied to the invoice.
// This is a value object within the Invoice aggregate, stored as JSONB.
type PaymentRecord struct {
	ID        uuid.UUID       `json:"id"`
	Source    PaymentSource   `json:"source"`
	Reference string          `json:"reference"` // Stripe payment intent ID or manual receipt reference
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
	Note      string          `json:"note,omitempty"`
}

// PaymentRecords is a slice of PaymentRecord that implements GORM Scanner/Valuer for JSONB storage
type PaymentRecords []PaymentRecord

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p PaymentRecords) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *PaymentRecords) Scan(value interface{}) error {
	if value == nil {
		*p = PaymentRecords{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentRecords: unsupported type")
	}

	if len(bytes) == 0 {
		*p = PaymentRecords{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// NewPaymentRecord creates a new payment record
func NewPaymentRecord(source PaymentSource, reference string, amount valueobject.Money, note string) *PaymentRecord {
	return &PaymentRecord{
		ID:        uuid.New(),
		Source:    source,
		Reference: reference,
		Amount:    amount.Amount(),
		AppliedAt: time.Now(),
		Note:      note,
	}
}

// GetAmountMoney returns the amount as Money value object
func (p *PaymentRecord) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(p.Amount)
}

// FeePolicy describes how platform fee and tax are derived from the subtotal.
// Percentages are expressed as e.g. 2.5 for 2.5%.
type FeePolicy struct {
	FeePercent decimal.Decimal
	TaxPercent decimal.Decimal
}

// DefaultFeePolicy returns the platform's standard fee policy
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		FeePercent: decimal.NewFromFloat(2.5),
		TaxPercent: decimal.Zero,
	}
}

// Invoice is the aggregate root tracking money owed either by a client
// (matter billing) or by the practice itself (subscription charges).
// Amounts are derived: Subtotal from line items, fee and tax from the
// fee policy, Total = Subtotal + Fee + Tax.
type Invoice struct {
	shared.PracticeAggregateRoot
	InvoiceNumber     string          `json:"invoice_number"`
	Kind              InvoiceKind     `json:"kind"`
	ClientID          *uuid.UUID      `json:"client_id"`           // Set for MATTER and MANUAL invoices
	ClientName        string          `json:"client_name"`
	MatterID          *uuid.UUID      `json:"matter_id"`           // Set for MATTER invoices
	MatterNumber      string          `json:"matter_number"`
	LineItems         LineItems       `json:"line_items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	FeePercent        decimal.Decimal `json:"fee_percent"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	TaxPercent        decimal.Decimal `json:"tax_percent"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Currency          valueobject.Currency `json:"currency"`
	Status            InvoiceStatus   `json:"status"`
	DueDate           *time.Time      `json:"due_date"`
	PaymentRecords    PaymentRecords  `json:"payment_records"`
	Memo              string          `json:"memo"`

	// Stripe linkage, populated once the invoice is finalized and a
	// payment intent is created for it.
	StripePaymentIntentID string `json:"stripe_payment_intent_id"`
	StripeInvoiceID       string `json:"stripe_invoice_id"`

	IssuedAt          *time.Time `json:"issued_at"`
	PaidAt            *time.Time `json:"paid_at"`
	VoidedAt          *time.Time `json:"voided_at"`
	VoidReason        string     `json:"void_reason"`
	MarkedOverdueAt   *time.Time `json:"marked_overdue_at"`
	WrittenOffAt      *time.Time `json:"written_off_at"`
	WriteOffReason    string     `json:"write_off_reason"`
}

// NewInvoice creates a new draft invoice
func NewInvoice(
	practiceID uuid.UUID,
	invoiceNumber string,
	kind InvoiceKind,
	clientID *uuid.UUID,
	clientName string,
	policy FeePolicy,
	currency valueobject.Currency,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INVOICE_KIND", "Invoice kind is not valid")
	}
	if kind != InvoiceKindSubscription {
		if clientID == nil || *clientID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID is required for client invoices")
		}
		if clientName == "" {
			return nil, shared.NewDomainError("INVALID_CLIENT_NAME", "Client name cannot be empty")
		}
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	inv := &Invoice{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		InvoiceNumber:         invoiceNumber,
		Kind:                  kind,
		ClientID:              clientID,
		ClientName:            clientName,
		LineItems:             LineItems{},
		Subtotal:              decimal.Zero,
		FeePercent:            policy.FeePercent,
		FeeAmount:             decimal.Zero,
		TaxPercent:            policy.TaxPercent,
		TaxAmount:             decimal.Zero,
		TotalAmount:           decimal.Zero,
		PaidAmount:            decimal.Zero,
		OutstandingAmount:     decimal.Zero,
		Currency:              currency,
		Status:                InvoiceStatusDraft,
		PaymentRecords:        PaymentRecords{},
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// AttachMatter links the invoice to a matter. Only allowed while drafting.
func (inv *Invoice) AttachMatter(matterID uuid.UUID, matterNumber string) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Matter can only be attached to a draft invoice")
	}
	if matterID == uuid.Nil {
		return shared.NewDomainError("INVALID_MATTER", "Matter ID cannot be empty")
	}
	inv.MatterID = &matterID
	inv.MatterNumber = matterNumber
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// AddLineItem appends a line item and recalculates derived amounts.
// Only allowed while the invoice is a draft.
func (inv *Invoice) AddLineItem(description string, quantity, unitPrice decimal.Decimal) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot add line items to invoice in %s status", inv.Status))
	}

	item, err := NewLineItem(description, quantity, unitPrice)
	if err != nil {
		return err
	}

	inv.LineItems = append(inv.LineItems, *item)
	inv.recalculate()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// RemoveLineItem removes a line item by ID and recalculates derived amounts
func (inv *Invoice) RemoveLineItem(itemID uuid.UUID) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot remove line items from invoice in %s status", inv.Status))
	}

	for i, item := range inv.LineItems {
		if item.ID == itemID {
			inv.LineItems = append(inv.LineItems[:i], inv.LineItems[i+1:]...)
			inv.recalculate()
			inv.UpdatedAt = time.Now()
			inv.IncrementVersion()
			return nil
		}
	}

	return shared.ErrNotFound
}

// recalculate derives subtotal, fee, tax, total and outstanding from the
// line items and fee policy. Payments already applied are preserved.
func (inv *Invoice) recalculate() {
	subtotal := decimal.Zero
	for _, item := range inv.LineItems {
		subtotal = subtotal.Add(item.Amount)
	}
	inv.Subtotal = subtotal
	inv.FeeAmount = subtotal.Mul(inv.FeePercent).Div(decimal.NewFromInt(100)).Round(2)
	inv.TaxAmount = subtotal.Mul(inv.TaxPercent).Div(decimal.NewFromInt(100)).Round(2)
	inv.TotalAmount = subtotal.Add(inv.FeeAmount).Add(inv.TaxAmount)
	inv.OutstandingAmount = inv.TotalAmount.Sub(inv.PaidAmount)
}

// Finalize issues the invoice, moving it from DRAFT to OPEN.
// A due date is required so overdue detection has something to work from.
func (inv *Invoice) Finalize(dueDate time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot finalize invoice in %s status", inv.Status))
	}
	if len(inv.LineItems) == 0 {
		return shared.NewDomainError("EMPTY_INVOICE", "Cannot finalize an invoice with no line items")
	}
	if inv.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Invoice total must be positive")
	}
	if dueDate.Before(time.Now()) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be in the past")
	}

	now := time.Now()
	inv.Status = InvoiceStatusOpen
	inv.DueDate = &dueDate
	inv.IssuedAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceFinalizedEvent(inv))

	return nil
}

// SetStripeReferences records the Stripe identifiers created for this invoice
func (inv *Invoice) SetStripeReferences(paymentIntentID, stripeInvoiceID string) {
	inv.StripePaymentIntentID = paymentIntentID
	inv.StripeInvoiceID = stripeInvoiceID
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// ApplyPayment applies a payment to the invoice. Partial payments are
// tolerated: the invoice stays OPEN (or OVERDUE) until the outstanding
// balance reaches zero, at which point it transitions to PAID.
// A payment with a reference already recorded is skipped without error,
// which makes webhook-driven reconciliation safe to retry.
func (inv *Invoice) ApplyPayment(amount valueobject.Money, source PaymentSource, reference string, note string) error {
	if !inv.Status.CanApplyPayment() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to invoice in %s status", inv.Status))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if reference == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Payment reference cannot be empty")
	}
	if amount.Amount().GreaterThan(inv.OutstandingAmount) {
		return shared.NewDomainError("PAYMENT_EXCEEDS_DUE", fmt.Sprintf("Payment amount %.2f exceeds outstanding amount %.2f", amount.Amount().InexactFloat64(), inv.OutstandingAmount.InexactFloat64()))
	}

	if inv.HasPaymentReference(reference) {
		return nil
	}

	record := NewPaymentRecord(source, reference, amount, note)
	inv.PaymentRecords = append(inv.PaymentRecords, *record)

	inv.PaidAmount = inv.PaidAmount.Add(amount.Amount())
	inv.OutstandingAmount = inv.TotalAmount.Sub(inv.PaidAmount)

	if inv.OutstandingAmount.IsZero() {
		now := time.Now()
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	} else {
		inv.AddDomainEvent(NewInvoicePartiallyPaidEvent(inv, amount))
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// HasPaymentReference reports whether a payment with the given reference
// has already been recorded.
func (inv *Invoice) HasPaymentReference(reference string) bool {
	for _, rec := range inv.PaymentRecords {
		if rec.Reference == reference {
			return true
		}
	}
	return false
}

// MarkOverdue transitions an OPEN invoice past its due date to OVERDUE.
// Calling it on an invoice that is not OPEN, or not yet due, is a no-op.
func (inv *Invoice) MarkOverdue(asOf time.Time) bool {
	if inv.Status != InvoiceStatusOpen {
		return false
	}
	if inv.DueDate == nil || !asOf.After(*inv.DueDate) {
		return false
	}

	now := time.Now()
	inv.Status = InvoiceStatusOverdue
	inv.MarkedOverdueAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceOverdueEvent(inv))

	return true
}

// Void voids the invoice. Only DRAFT and OPEN invoices with no payments
// can be voided.
func (inv *Invoice) Void(reason string) error {
	if !inv.Status.CanVoid() {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot void invoice in %s status", inv.Status))
	}
	if inv.PaidAmount.GreaterThan(decimal.Zero) {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot void an invoice with recorded payments")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Void reason is required")
	}

	now := time.Now()
	previousStatus := inv.Status
	inv.Status = InvoiceStatusVoid
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.OutstandingAmount = decimal.Zero
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceVoidedEvent(inv, previousStatus))

	return nil
}

// MarkUncollectible writes off an OPEN or OVERDUE invoice. Any paid amount
// is kept on record; the remaining outstanding balance is written off.
func (inv *Invoice) MarkUncollectible(reason string) error {
	if inv.Status != InvoiceStatusOpen && inv.Status != InvoiceStatusOverdue {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot write off invoice in %s status", inv.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Write-off reason is required")
	}

	now := time.Now()
	previousStatus := inv.Status
	writtenOff := inv.OutstandingAmount

	inv.Status = InvoiceStatusUncollectible
	inv.WrittenOffAt = &now
	inv.WriteOffReason = reason
	inv.OutstandingAmount = decimal.Zero
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceUncollectibleEvent(inv, previousStatus, writtenOff))

	return nil
}

// SetDueDate updates the due date
func (inv *Invoice) SetDueDate(dueDate *time.Time) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify due date for invoice in terminal state")
	}

	inv.DueDate = dueDate
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// SetMemo sets the memo
func (inv *Invoice) SetMemo(memo string) {
	inv.Memo = memo
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// Helper methods

// GetTotalAmountMoney returns total amount as Money
func (inv *Invoice) GetTotalAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.TotalAmount, inv.Currency)
	return m
}

// GetPaidAmountMoney returns paid amount as Money
func (inv *Invoice) GetPaidAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.PaidAmount, inv.Currency)
	return m
}

// GetOutstandingAmountMoney returns outstanding amount as Money
func (inv *Invoice) GetOutstandingAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.OutstandingAmount, inv.Currency)
	return m
}

// IsDraft returns true if the invoice is still a draft
func (inv *Invoice) IsDraft() bool {
	return inv.Status == InvoiceStatusDraft
}

// IsOpen returns true if the invoice is open
func (inv *Invoice) IsOpen() bool {
	return inv.Status == InvoiceStatusOpen
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsVoid returns true if the invoice is voided
func (inv *Invoice) IsVoid() bool {
	return inv.Status == InvoiceStatusVoid
}

// IsPastDue returns true if the invoice is unpaid and past its due date
func (inv *Invoice) IsPastDue() bool {
	if inv.Status.IsTerminal() {
		return false
	}
	if inv.DueDate == nil {
		return false
	}
	return time.Now().After(*inv.DueDate)
}

// DaysOverdue returns the number of days past due (0 if not overdue)
func (inv *Invoice) DaysOverdue() int {
	if !inv.IsPastDue() {
		return 0
	}
	return int(time.Since(*inv.DueDate).Hours() / 24)
}

// PaymentCount returns the number of payments applied
func (inv *Invoice) PaymentCount() int {
	return len(inv.PaymentRecords)
}

// PaidPercentage returns the percentage of total that has been paid (0-100)
func (inv *Invoice) PaidPercentage() decimal.Decimal {
	if inv.TotalAmount.IsZero() {
		return decimal.NewFromInt(100)
	}
	return inv.PaidAmount.Div(inv.TotalAmount).Mul(decimal.NewFromInt(100)).Round(2)
}
