package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService provides application-level invoice operations: drafting,
// finalizing with a Stripe payment intent, recording payments and the
// terminal transitions (void, write-off).
type InvoiceService struct {
	invoiceRepo  domainbilling.InvoiceRepository
	practiceRepo identity.PracticeRepository
	clientRepo   identity.ClientRepository
	matterRepo   matter.MatterRepository
	processor    infrabilling.Processor
	eventBus     shared.EventBus
	logger       *zap.Logger
}

// InvoiceServiceConfig contains the dependencies for InvoiceService
type InvoiceServiceConfig struct {
	InvoiceRepo  domainbilling.InvoiceRepository
	PracticeRepo identity.PracticeRepository
	ClientRepo   identity.ClientRepository
	MatterRepo   matter.MatterRepository
	Processor    infrabilling.Processor
	EventBus     shared.EventBus
	Logger       *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:  cfg.InvoiceRepo,
		practiceRepo: cfg.PracticeRepo,
		clientRepo:   cfg.ClientRepo,
		matterRepo:   cfg.MatterRepo,
		processor:    cfg.Processor,
		eventBus:     cfg.EventBus,
		logger:       cfg.Logger,
	}
}

// LineItemInput describes one line on an invoice
type LineItemInput struct {
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

// CreateInvoiceInput carries the fields for drafting a new invoice
type CreateInvoiceInput struct {
	Kind       domainbilling.InvoiceKind `json:"kind" binding:"required"`
	ClientID   *uuid.UUID                `json:"client_id"`
	MatterID   *uuid.UUID                `json:"matter_id"`
	LineItems  []LineItemInput           `json:"line_items"`
	Memo       string                    `json:"memo"`
	FeePercent *decimal.Decimal          `json:"fee_percent"`
	TaxPercent *decimal.Decimal          `json:"tax_percent"`
}

// FinalizeInvoiceInput carries finalize options. A nil due date falls back
// to the practice's configured payment terms.
type FinalizeInvoiceInput struct {
	DueDate *time.Time `json:"due_date"`
}

// RecordPaymentInput carries a manually recorded payment (check, wire)
type RecordPaymentInput struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reference string          `json:"reference" binding:"required"`
	Note      string          `json:"note"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentRecordResponse represents an applied payment in API responses
type PaymentRecordResponse struct {
	ID        uuid.UUID       `json:"id"`
	Source    string          `json:"source"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
	Note      string          `json:"note,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                    uuid.UUID               `json:"id"`
	PracticeID            uuid.UUID               `json:"practice_id"`
	InvoiceNumber         string                  `json:"invoice_number"`
	Kind                  string                  `json:"kind"`
	ClientID              *uuid.UUID              `json:"client_id,omitempty"`
	ClientName            string                  `json:"client_name,omitempty"`
	MatterID              *uuid.UUID              `json:"matter_id,omitempty"`
	MatterNumber          string                  `json:"matter_number,omitempty"`
	LineItems             []LineItemResponse      `json:"line_items"`
	Subtotal              decimal.Decimal         `json:"subtotal"`
	FeePercent            decimal.Decimal         `json:"fee_percent"`
	FeeAmount             decimal.Decimal         `json:"fee_amount"`
	TaxPercent            decimal.Decimal         `json:"tax_percent"`
	TaxAmount             decimal.Decimal         `json:"tax_amount"`
	TotalAmount           decimal.Decimal         `json:"total_amount"`
	PaidAmount            decimal.Decimal         `json:"paid_amount"`
	OutstandingAmount     decimal.Decimal         `json:"outstanding_amount"`
	Currency              string                  `json:"currency"`
	Status                string                  `json:"status"`
	DueDate               *time.Time              `json:"due_date,omitempty"`
	PaymentRecords        []PaymentRecordResponse `json:"payment_records,omitempty"`
	Memo                  string                  `json:"memo,omitempty"`
	StripePaymentIntentID string                  `json:"stripe_payment_intent_id,omitempty"`
	IssuedAt              *time.Time              `json:"issued_at,omitempty"`
	PaidAt                *time.Time              `json:"paid_at,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
	Version               int                     `json:"version"`
}

// FinalizeInvoiceResponse is the finalize result. ClientSecret is set when
// a Stripe payment intent was created for online collection.
type FinalizeInvoiceResponse struct {
	Invoice      *InvoiceResponse `json:"invoice"`
	ClientSecret string           `json:"client_secret,omitempty"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	Search   string     `form:"search"`
	ClientID *uuid.UUID `form:"client_id"`
	MatterID *uuid.UUID `form:"matter_id"`
	Kind     string     `form:"kind"`
	Status   string     `form:"status"`
	FromDate *time.Time `form:"from_date"`
	ToDate   *time.Time `form:"to_date"`
	PastDue  *bool      `form:"past_due"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// InvoiceSummary aggregates a practice's receivable position
type InvoiceSummary struct {
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	DraftCount       int64           `json:"draft_count"`
	OpenCount        int64           `json:"open_count"`
	OverdueCount     int64           `json:"overdue_count"`
	PaidCount        int64           `json:"paid_count"`
}

// CreateInvoice drafts a new invoice for a practice. Line items may be
// supplied up front or added later while the invoice is still a draft.
func (s *InvoiceService) CreateInvoice(ctx context.Context, practiceID uuid.UUID, input CreateInvoiceInput) (*InvoiceResponse, error) {
	var clientName string
	if input.ClientID != nil {
		client, err := s.clientRepo.FindByIDForPractice(ctx, practiceID, *input.ClientID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Client not found")
			}
			return nil, err
		}
		clientName = client.Name
	}

	number, err := s.invoiceRepo.NextInvoiceNumber(ctx, practiceID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}

	// Fee and tax rates come from the practice settings; explicit input
	// values override them for one-off arrangements.
	practice, err := s.practiceRepo.FindByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Practice not found")
		}
		return nil, err
	}
	policy := domainbilling.FeePolicy{
		FeePercent: practice.Settings.FeePercent,
		TaxPercent: practice.Settings.TaxPercent,
	}
	if input.FeePercent != nil {
		policy.FeePercent = *input.FeePercent
	}
	if input.TaxPercent != nil {
		policy.TaxPercent = *input.TaxPercent
	}

	inv, err := domainbilling.NewInvoice(practiceID, number, input.Kind, input.ClientID, clientName, policy, valueobject.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	if input.MatterID != nil {
		m, err := s.matterRepo.FindByIDForPractice(ctx, practiceID, *input.MatterID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Matter not found")
			}
			return nil, err
		}
		if input.ClientID == nil || m.ClientID != *input.ClientID {
			return nil, shared.NewDomainError("CLIENT_MISMATCH", "Matter does not belong to the invoice client")
		}
		if err := inv.AttachMatter(m.ID, m.MatterNumber); err != nil {
			return nil, err
		}
	}

	for _, item := range input.LineItems {
		if err := inv.AddLineItem(item.Description, item.Quantity, item.UnitPrice); err != nil {
			return nil, err
		}
	}

	if input.Memo != "" {
		inv.SetMemo(input.Memo)
	}

	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	s.logger.Info("Invoice created",
		zap.String("practice_id", practiceID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("kind", string(inv.Kind)))

	return toInvoiceResponse(inv), nil
}

// AddLineItem appends a line item to a draft invoice
func (s *InvoiceService) AddLineItem(ctx context.Context, practiceID, invoiceID uuid.UUID, input LineItemInput) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := inv.AddLineItem(input.Description, input.Quantity, input.UnitPrice); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	return toInvoiceResponse(inv), nil
}

// RemoveLineItem removes a line item from a draft invoice
func (s *InvoiceService) RemoveLineItem(ctx context.Context, practiceID, invoiceID, itemID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := inv.RemoveLineItem(itemID); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	return toInvoiceResponse(inv), nil
}

// FinalizeInvoice issues a draft invoice. When the practice has a connected
// Stripe account with charges enabled, a payment intent is created so the
// client can pay online; a Stripe failure aborts the finalize entirely and
// the invoice stays a draft.
func (s *InvoiceService) FinalizeInvoice(ctx context.Context, practiceID, invoiceID uuid.UUID, input FinalizeInvoiceInput) (*FinalizeInvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	practice, err := s.practiceRepo.FindByID(ctx, practiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find practice: %w", err)
	}

	dueDate := time.Now().AddDate(0, 0, practice.Settings.InvoiceDueDays)
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}

	if err := inv.Finalize(dueDate); err != nil {
		return nil, err
	}

	clientSecret := ""
	if s.collectsOnline(practice, inv) {
		intent, err := s.processor.CreatePaymentIntent(ctx, infrabilling.CreatePaymentIntentInput{
			PracticeID:  practiceID,
			InvoiceID:   inv.ID,
			Amount:      inv.TotalAmount,
			Currency:    string(inv.Currency),
			Description: fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
		})
		if err != nil {
			// Nothing has been persisted yet; the draft is untouched
			return nil, fmt.Errorf("failed to create payment intent: %w", err)
		}
		inv.SetStripeReferences(intent.PaymentIntentID, "")
		clientSecret = intent.ClientSecret
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	s.logger.Info("Invoice finalized",
		zap.String("practice_id", practiceID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.TotalAmount.StringFixed(2)),
		zap.Bool("online_payment", clientSecret != ""))

	return &FinalizeInvoiceResponse{
		Invoice:      toInvoiceResponse(inv),
		ClientSecret: clientSecret,
	}, nil
}

// collectsOnline reports whether a payment intent should be created for
// the invoice. Subscription invoices are billed by Stripe directly.
func (s *InvoiceService) collectsOnline(practice *identity.Practice, inv *domainbilling.Invoice) bool {
	if s.processor == nil {
		return false
	}
	if inv.Kind == domainbilling.InvoiceKindSubscription {
		return false
	}
	return practice.CanCollectPayments()
}

// RecordManualPayment records an out-of-band payment (check, wire) against
// an open invoice
func (s *InvoiceService) RecordManualPayment(ctx context.Context, practiceID, invoiceID uuid.UUID, input RecordPaymentInput) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	amount, err := valueobject.NewMoney(input.Amount, inv.Currency)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", err.Error())
	}

	if err := inv.ApplyPayment(amount, domainbilling.PaymentSourceManual, input.Reference, input.Note); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	s.logger.Info("Manual payment recorded",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("reference", input.Reference),
		zap.String("amount", input.Amount.StringFixed(2)),
		zap.String("status", string(inv.Status)))

	return toInvoiceResponse(inv), nil
}

// VoidInvoice voids a draft or open invoice with no payments
func (s *InvoiceService) VoidInvoice(ctx context.Context, practiceID, invoiceID uuid.UUID, reason string) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := inv.Void(reason); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	return toInvoiceResponse(inv), nil
}

// WriteOffInvoice marks an open or overdue invoice uncollectible
func (s *InvoiceService) WriteOffInvoice(ctx context.Context, practiceID, invoiceID uuid.UUID, reason string) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := inv.MarkUncollectible(reason); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	s.flushEvents(ctx, inv)

	return toInvoiceResponse(inv), nil
}

// UpdateDueDate changes the due date of a non-terminal invoice
func (s *InvoiceService) UpdateDueDate(ctx context.Context, practiceID, invoiceID uuid.UUID, dueDate *time.Time) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := inv.SetDueDate(dueDate); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	return toInvoiceResponse(inv), nil
}

// GetInvoiceByID gets an invoice by ID
func (s *InvoiceService) GetInvoiceByID(ctx context.Context, practiceID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.loadInvoice(ctx, practiceID, invoiceID)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(inv), nil
}

// ListInvoices lists invoices with filtering
func (s *InvoiceService) ListInvoices(ctx context.Context, practiceID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	domainFilter := domainbilling.InvoiceFilter{
		ClientID: filter.ClientID,
		MatterID: filter.MatterID,
		FromDate: filter.FromDate,
		ToDate:   filter.ToDate,
		PastDue:  filter.PastDue,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Kind != "" {
		kind := domainbilling.InvoiceKind(filter.Kind)
		domainFilter.Kind = &kind
	}
	if filter.Status != "" {
		status := domainbilling.InvoiceStatus(filter.Status)
		domainFilter.Status = &status
	}

	invoices, err := s.invoiceRepo.FindAllForPractice(ctx, practiceID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.invoiceRepo.CountForPractice(ctx, practiceID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = *toInvoiceResponse(&invoices[i])
	}

	return responses, total, nil
}

// GetInvoiceSummary aggregates the practice's receivable position
func (s *InvoiceService) GetInvoiceSummary(ctx context.Context, practiceID uuid.UUID) (*InvoiceSummary, error) {
	outstanding, err := s.invoiceRepo.SumOutstandingForPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	summary := &InvoiceSummary{TotalOutstanding: outstanding}

	counts := []struct {
		status domainbilling.InvoiceStatus
		target *int64
	}{
		{domainbilling.InvoiceStatusDraft, &summary.DraftCount},
		{domainbilling.InvoiceStatusOpen, &summary.OpenCount},
		{domainbilling.InvoiceStatusOverdue, &summary.OverdueCount},
		{domainbilling.InvoiceStatusPaid, &summary.PaidCount},
	}
	for _, c := range counts {
		n, err := s.invoiceRepo.CountByStatus(ctx, practiceID, c.status)
		if err != nil {
			return nil, err
		}
		*c.target = n
	}

	return summary, nil
}

// loadInvoice fetches a practice-scoped invoice, normalizing not-found
func (s *InvoiceService) loadInvoice(ctx context.Context, practiceID, invoiceID uuid.UUID) (*domainbilling.Invoice, error) {
	inv, err := s.invoiceRepo.FindByIDForPractice(ctx, practiceID, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, err
	}
	return inv, nil
}

// flushEvents publishes and clears the invoice's pending domain events
func (s *InvoiceService) flushEvents(ctx context.Context, inv *domainbilling.Invoice) {
	events := inv.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	inv.ClearDomainEvents()
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish invoice events", zap.Error(err))
	}
}

// toInvoiceResponse converts an invoice aggregate to its API representation
func toInvoiceResponse(inv *domainbilling.Invoice) *InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = LineItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		}
	}

	var payments []PaymentRecordResponse
	for _, rec := range inv.PaymentRecords {
		payments = append(payments, PaymentRecordResponse{
			ID:        rec.ID,
			Source:    string(rec.Source),
			Reference: rec.Reference,
			Amount:    rec.Amount,
			AppliedAt: rec.AppliedAt,
			Note:      rec.Note,
		})
	}

	return &InvoiceResponse{
		ID:                    inv.ID,
		PracticeID:            inv.PracticeID,
		InvoiceNumber:         inv.InvoiceNumber,
		Kind:                  string(inv.Kind),
		ClientID:              inv.ClientID,
		ClientName:            inv.ClientName,
		MatterID:              inv.MatterID,
		MatterNumber:          inv.MatterNumber,
		LineItems:             items,
		Subtotal:              inv.Subtotal,
		FeePercent:            inv.FeePercent,
		FeeAmount:             inv.FeeAmount,
		TaxPercent:            inv.TaxPercent,
		TaxAmount:             inv.TaxAmount,
		TotalAmount:           inv.TotalAmount,
		PaidAmount:            inv.PaidAmount,
		OutstandingAmount:     inv.OutstandingAmount,
		Currency:              string(inv.Currency),
		Status:                string(inv.Status),
		DueDate:               inv.DueDate,
		PaymentRecords:        payments,
		Memo:                  inv.Memo,
		StripePaymentIntentID: inv.StripePaymentIntentID,
		IssuedAt:              inv.IssuedAt,
		PaidAt:                inv.PaidAt,
		CreatedAt:             inv.CreatedAt,
		UpdatedAt:             inv.UpdatedAt,
		Version:               inv.Version,
	}
}
