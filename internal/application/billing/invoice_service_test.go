package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// svcInvoiceRepo serves the invoice service's slice of InvoiceRepository
type svcInvoiceRepo struct {
	domainbilling.InvoiceRepository

	mu       sync.Mutex
	byID     map[uuid.UUID]*domainbilling.Invoice
	sequence int
	saved    int
}

func newSvcInvoiceRepo() *svcInvoiceRepo {
	return &svcInvoiceRepo{byID: make(map[uuid.UUID]*domainbilling.Invoice)}
}

func (f *svcInvoiceRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*domainbilling.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[id]
	if !ok || inv.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (f *svcInvoiceRepo) NextInvoiceNumber(ctx context.Context, practiceID uuid.UUID, date time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return fmt.Sprintf("INV-%s-%05d", date.Format("20060102"), f.sequence), nil
}

func (f *svcInvoiceRepo) Save(ctx context.Context, inv *domainbilling.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[inv.ID] = inv
	f.saved++
	return nil
}

func (f *svcInvoiceRepo) SaveWithLock(ctx context.Context, inv *domainbilling.Invoice) error {
	return f.Save(ctx, inv)
}

// svcPracticeRepo serves only FindByID and SaveWithLock
type svcPracticeRepo struct {
	identity.PracticeRepository

	mu        sync.Mutex
	practices map[uuid.UUID]*identity.Practice
	saved     int
}

func newSvcPracticeRepo() *svcPracticeRepo {
	return &svcPracticeRepo{practices: make(map[uuid.UUID]*identity.Practice)}
}

func (f *svcPracticeRepo) add(p *identity.Practice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.practices[p.ID] = p
}

func (f *svcPracticeRepo) FindByID(ctx context.Context, id uuid.UUID) (*identity.Practice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.practices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (f *svcPracticeRepo) SaveWithLock(ctx context.Context, p *identity.Practice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return nil
}

// svcClientRepo serves only FindByIDForPractice
type svcClientRepo struct {
	identity.ClientRepository

	clients map[uuid.UUID]*identity.Client
}

func newSvcClientRepo() *svcClientRepo {
	return &svcClientRepo{clients: make(map[uuid.UUID]*identity.Client)}
}

func (f *svcClientRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*identity.Client, error) {
	c, ok := f.clients[id]
	if !ok || c.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

// svcMatterRepo serves only FindByIDForPractice
type svcMatterRepo struct {
	matter.MatterRepository

	matters map[uuid.UUID]*matter.Matter
}

func newSvcMatterRepo() *svcMatterRepo {
	return &svcMatterRepo{matters: make(map[uuid.UUID]*matter.Matter)}
}

func (f *svcMatterRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*matter.Matter, error) {
	m, ok := f.matters[id]
	if !ok || m.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

// fakeProcessor records calls and returns scripted outputs
type fakeProcessor struct {
	infrabilling.Processor

	mu sync.Mutex

	paymentIntentInput *infrabilling.CreatePaymentIntentInput
	paymentIntentOut   *infrabilling.PaymentIntentOutput
	paymentIntentErr   error

	customerOut *infrabilling.CustomerOutput
	customerErr error

	subscriptionInput *infrabilling.CreateSubscriptionInput
	subscriptionOut   *infrabilling.SubscriptionOutput
	subscriptionErr   error

	updateInput *infrabilling.UpdateSubscriptionInput
	updateOut   *infrabilling.SubscriptionOutput

	cancelInput *infrabilling.CancelSubscriptionInput
	cancelOut   *infrabilling.SubscriptionOutput

	resumeOut *infrabilling.SubscriptionOutput
	getOut    *infrabilling.SubscriptionOutput
}

func (f *fakeProcessor) CreatePaymentIntent(ctx context.Context, input infrabilling.CreatePaymentIntentInput) (*infrabilling.PaymentIntentOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentIntentInput = &input
	if f.paymentIntentErr != nil {
		return nil, f.paymentIntentErr
	}
	return f.paymentIntentOut, nil
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, input infrabilling.CreateCustomerInput) (*infrabilling.CustomerOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	return f.customerOut, nil
}

func (f *fakeProcessor) CreateSubscription(ctx context.Context, input infrabilling.CreateSubscriptionInput) (*infrabilling.SubscriptionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptionInput = &input
	if f.subscriptionErr != nil {
		return nil, f.subscriptionErr
	}
	return f.subscriptionOut, nil
}

func (f *fakeProcessor) UpdateSubscriptionPlan(ctx context.Context, input infrabilling.UpdateSubscriptionInput) (*infrabilling.SubscriptionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateInput = &input
	return f.updateOut, nil
}

func (f *fakeProcessor) CancelSubscription(ctx context.Context, input infrabilling.CancelSubscriptionInput) (*infrabilling.SubscriptionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelInput = &input
	return f.cancelOut, nil
}

func (f *fakeProcessor) ResumeSubscription(ctx context.Context, practiceID uuid.UUID, subscriptionID string) (*infrabilling.SubscriptionOutput, error) {
	return f.resumeOut, nil
}

func (f *fakeProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*infrabilling.SubscriptionOutput, error) {
	return f.getOut, nil
}

type invoiceFixture struct {
	service   *InvoiceService
	invoices  *svcInvoiceRepo
	prs       *svcPracticeRepo
	clients   *svcClientRepo
	matters   *svcMatterRepo
	processor *fakeProcessor
	bus       *recordingEventBus
	practice  *identity.Practice
	client    *identity.Client
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()

	practice, err := identity.NewPractice("OAKWOOD", "Oakwood Mediation Group")
	require.NoError(t, err)
	practice.ClearDomainEvents()

	client, err := identity.NewClient(practice.ID, "Dana Whitfield", "dana@example.com")
	require.NoError(t, err)

	invoices := newSvcInvoiceRepo()
	prs := newSvcPracticeRepo()
	prs.add(practice)
	clients := newSvcClientRepo()
	clients.clients[client.ID] = client
	matters := newSvcMatterRepo()
	processor := &fakeProcessor{}
	bus := &recordingEventBus{}

	service := NewInvoiceService(InvoiceServiceConfig{
		InvoiceRepo:  invoices,
		PracticeRepo: prs,
		ClientRepo:   clients,
		MatterRepo:   matters,
		Processor:    processor,
		EventBus:     bus,
		Logger:       zap.NewNop(),
	})

	return &invoiceFixture{
		service:   service,
		invoices:  invoices,
		prs:       prs,
		clients:   clients,
		matters:   matters,
		processor: processor,
		bus:       bus,
		practice:  practice,
		client:    client,
	}
}

func (f *invoiceFixture) draftInvoice(t *testing.T) *InvoiceResponse {
	t.Helper()
	resp, err := f.service.CreateInvoice(context.Background(), f.practice.ID, CreateInvoiceInput{
		Kind:     domainbilling.InvoiceKindMatter,
		ClientID: &f.client.ID,
		LineItems: []LineItemInput{
			{Description: "Mediation session", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(250)},
		},
	})
	require.NoError(t, err)
	return resp
}

func TestInvoiceService_CreateInvoice(t *testing.T) {
	f := newInvoiceFixture(t)

	resp, err := f.service.CreateInvoice(context.Background(), f.practice.ID, CreateInvoiceInput{
		Kind:     domainbilling.InvoiceKindMatter,
		ClientID: &f.client.ID,
		Memo:     "Session block, July",
		LineItems: []LineItemInput{
			{Description: "Mediation session", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(250)},
			{Description: "Document review", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(150)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.InvoiceStatusDraft), resp.Status)
	assert.Equal(t, "Dana Whitfield", resp.ClientName)
	assert.Len(t, resp.LineItems, 2)
	// 1300 subtotal + 2.5% platform fee
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(1300)))
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("1332.50")))
	assert.NotEmpty(t, resp.InvoiceNumber)
	assert.Contains(t, f.bus.eventTypes(), "InvoiceCreated")
}

func TestInvoiceService_CreateInvoice_UsesPracticeFeeSettings(t *testing.T) {
	f := newInvoiceFixture(t)

	settings := f.practice.Settings
	settings.FeePercent = decimal.NewFromInt(5)
	settings.TaxPercent = decimal.RequireFromString("8.875")
	require.NoError(t, f.practice.UpdateSettings(settings))

	resp, err := f.service.CreateInvoice(context.Background(), f.practice.ID, CreateInvoiceInput{
		Kind:     domainbilling.InvoiceKindMatter,
		ClientID: &f.client.ID,
		LineItems: []LineItemInput{
			{Description: "Mediation session", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(250)},
		},
	})
	require.NoError(t, err)

	// 1000 subtotal + 5% fee + 8.875% tax
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, resp.FeeAmount.Equal(decimal.NewFromInt(50)), resp.FeeAmount.String())
	assert.True(t, resp.TaxAmount.Equal(decimal.RequireFromString("88.75")), resp.TaxAmount.String())
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("1138.75")), resp.TotalAmount.String())
}

func TestInvoiceService_CreateInvoice_ExplicitRatesOverrideSettings(t *testing.T) {
	f := newInvoiceFixture(t)

	fee := decimal.NewFromInt(10)
	tax := decimal.Zero
	resp, err := f.service.CreateInvoice(context.Background(), f.practice.ID, CreateInvoiceInput{
		Kind:       domainbilling.InvoiceKindMatter,
		ClientID:   &f.client.ID,
		FeePercent: &fee,
		TaxPercent: &tax,
		LineItems: []LineItemInput{
			{Description: "Mediation session", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(250)},
		},
	})
	require.NoError(t, err)

	assert.True(t, resp.FeeAmount.Equal(decimal.NewFromInt(100)), resp.FeeAmount.String())
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(1100)), resp.TotalAmount.String())
}

func TestInvoiceService_CreateInvoice_UnknownClient(t *testing.T) {
	f := newInvoiceFixture(t)
	unknown := uuid.New()

	_, err := f.service.CreateInvoice(context.Background(), f.practice.ID, CreateInvoiceInput{
		Kind:     domainbilling.InvoiceKindMatter,
		ClientID: &unknown,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestInvoiceService_CreateInvoice_MatterClientMismatch(t *testing.T) {
	f := newInvoiceFixture(t)

	otherClient := uuid.New()
	m, err := matter.NewMatter(f.practice.ID, "MAT-20260801-00001", "Estate distribution dispute",
		matter.MatterTypeFamily, otherClient, "Someone Else", "Estate of R. Whitfield")
	require.NoError(t, err)
	f.matters.matters[m.ID] = m

	_, err = f.service.CreateInvoice(context.Background(), f.practice.ID, CreateInvoiceInput{
		Kind:     domainbilling.InvoiceKindMatter,
		ClientID: &f.client.ID,
		MatterID: &m.ID,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CLIENT_MISMATCH", domainErr.Code)
}

func TestInvoiceService_FinalizeInvoice_CreatesPaymentIntent(t *testing.T) {
	f := newInvoiceFixture(t)

	require.NoError(t, f.practice.LinkStripeAccount("acct_oak"))
	f.practice.SyncStripeAccountCapabilities(true, true, true)
	f.practice.ClearDomainEvents()

	f.processor.paymentIntentOut = &infrabilling.PaymentIntentOutput{
		PaymentIntentID: "pi_oak_1",
		ClientSecret:    "pi_oak_1_secret",
		Status:          "requires_payment_method",
	}

	draft := f.draftInvoice(t)

	resp, err := f.service.FinalizeInvoice(context.Background(), f.practice.ID, draft.ID, FinalizeInvoiceInput{})
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.InvoiceStatusOpen), resp.Invoice.Status)
	assert.Equal(t, "pi_oak_1", resp.Invoice.StripePaymentIntentID)
	assert.Equal(t, "pi_oak_1_secret", resp.ClientSecret)
	require.NotNil(t, resp.Invoice.DueDate)

	// Due date comes from the practice's 30-day default terms
	expectedDue := time.Now().AddDate(0, 0, f.practice.Settings.InvoiceDueDays)
	assert.WithinDuration(t, expectedDue, *resp.Invoice.DueDate, time.Minute)

	require.NotNil(t, f.processor.paymentIntentInput)
	assert.True(t, f.processor.paymentIntentInput.Amount.Equal(decimal.RequireFromString("1025.00")))
}

func TestInvoiceService_FinalizeInvoice_ProcessorFailureLeavesDraft(t *testing.T) {
	f := newInvoiceFixture(t)

	require.NoError(t, f.practice.LinkStripeAccount("acct_oak"))
	f.practice.SyncStripeAccountCapabilities(true, true, true)
	f.processor.paymentIntentErr = errors.New("stripe unavailable")

	draft := f.draftInvoice(t)
	savedBefore := f.invoices.saved

	_, err := f.service.FinalizeInvoice(context.Background(), f.practice.ID, draft.ID, FinalizeInvoiceInput{})
	require.Error(t, err)

	// Nothing persisted beyond the original draft save
	assert.Equal(t, savedBefore, f.invoices.saved)
}

func TestInvoiceService_FinalizeInvoice_NoConnectedAccount(t *testing.T) {
	f := newInvoiceFixture(t)
	draft := f.draftInvoice(t)

	resp, err := f.service.FinalizeInvoice(context.Background(), f.practice.ID, draft.ID, FinalizeInvoiceInput{})
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.InvoiceStatusOpen), resp.Invoice.Status)
	assert.Empty(t, resp.ClientSecret)
	assert.Empty(t, resp.Invoice.StripePaymentIntentID)
	assert.Nil(t, f.processor.paymentIntentInput)
}

func TestInvoiceService_RecordManualPayment_PartialThenFull(t *testing.T) {
	f := newInvoiceFixture(t)
	draft := f.draftInvoice(t)

	_, err := f.service.FinalizeInvoice(context.Background(), f.practice.ID, draft.ID, FinalizeInvoiceInput{})
	require.NoError(t, err)

	partial, err := f.service.RecordManualPayment(context.Background(), f.practice.ID, draft.ID, RecordPaymentInput{
		Amount:    decimal.RequireFromString("500.00"),
		Reference: "CHK-1042",
		Note:      "Check payment",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbilling.InvoiceStatusOpen), partial.Status)
	assert.True(t, partial.OutstandingAmount.Equal(decimal.RequireFromString("525.00")))

	full, err := f.service.RecordManualPayment(context.Background(), f.practice.ID, draft.ID, RecordPaymentInput{
		Amount:    decimal.RequireFromString("525.00"),
		Reference: "CHK-1043",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbilling.InvoiceStatusPaid), full.Status)
	assert.Contains(t, f.bus.eventTypes(), "InvoicePaid")
}

func TestInvoiceService_VoidInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	draft := f.draftInvoice(t)

	resp, err := f.service.VoidInvoice(context.Background(), f.practice.ID, draft.ID, "Issued in error")
	require.NoError(t, err)
	assert.Equal(t, string(domainbilling.InvoiceStatusVoid), resp.Status)
}

func TestInvoiceService_WriteOffInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	draft := f.draftInvoice(t)

	_, err := f.service.FinalizeInvoice(context.Background(), f.practice.ID, draft.ID, FinalizeInvoiceInput{})
	require.NoError(t, err)

	resp, err := f.service.WriteOffInvoice(context.Background(), f.practice.ID, draft.ID, "Client unreachable")
	require.NoError(t, err)
	assert.Equal(t, string(domainbilling.InvoiceStatusUncollectible), resp.Status)
	assert.True(t, resp.OutstandingAmount.IsZero())
}
