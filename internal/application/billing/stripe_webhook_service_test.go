package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"github.com/praxis/backend/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way Stripe signs
// webhook deliveries: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// webhookPayload builds a raw Stripe event envelope around the given object
func webhookPayload(t *testing.T, eventID, eventType string, object any) []byte {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)
	return payload
}

// webhookInvoiceRepo serves the webhook handlers' slice of InvoiceRepository
type webhookInvoiceRepo struct {
	domainbilling.InvoiceRepository

	mu       sync.Mutex
	invoices []*domainbilling.Invoice
	saved    int
}

func (f *webhookInvoiceRepo) add(inv *domainbilling.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, inv)
}

func (f *webhookInvoiceRepo) FindByStripePaymentIntentID(ctx context.Context, paymentIntentID string) (*domainbilling.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.StripePaymentIntentID == paymentIntentID {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookInvoiceRepo) FindByStripeInvoiceID(ctx context.Context, stripeInvoiceID string) (*domainbilling.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.StripeInvoiceID == stripeInvoiceID {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookInvoiceRepo) SaveWithLock(ctx context.Context, inv *domainbilling.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return nil
}

// webhookSubscriptionRepo serves the webhook handlers' slice of SubscriptionRepository
type webhookSubscriptionRepo struct {
	domainbilling.SubscriptionRepository

	mu            sync.Mutex
	subscriptions []*domainbilling.Subscription
	saved         int
}

func (f *webhookSubscriptionRepo) add(sub *domainbilling.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions = append(f.subscriptions, sub)
}

func (f *webhookSubscriptionRepo) FindByStripeSubscriptionID(ctx context.Context, id string) (*domainbilling.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subscriptions {
		if sub.StripeSubscriptionID != "" && sub.StripeSubscriptionID == id {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookSubscriptionRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*domainbilling.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subscriptions {
		if sub.StripeCustomerID != "" && sub.StripeCustomerID == customerID {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookSubscriptionRepo) SaveWithLock(ctx context.Context, sub *domainbilling.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return nil
}

// webhookPracticeRepo serves the webhook handlers' slice of PracticeRepository
type webhookPracticeRepo struct {
	identity.PracticeRepository

	mu        sync.Mutex
	practices []*identity.Practice
	saved     int
}

func (f *webhookPracticeRepo) add(p *identity.Practice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.practices = append(f.practices, p)
}

func (f *webhookPracticeRepo) FindByID(ctx context.Context, id uuid.UUID) (*identity.Practice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.practices {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookPracticeRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.Practice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.practices {
		if p.StripeCustomerID != "" && p.StripeCustomerID == customerID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookPracticeRepo) FindByStripeAccountID(ctx context.Context, accountID string) (*identity.Practice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.practices {
		if p.StripeAccountID != "" && p.StripeAccountID == accountID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *webhookPracticeRepo) SaveWithLock(ctx context.Context, p *identity.Practice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return nil
}

// recordingEventBus records published events
type recordingEventBus struct {
	shared.EventBus

	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *recordingEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *recordingEventBus) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}

type webhookFixture struct {
	service  *StripeWebhookService
	invoices *webhookInvoiceRepo
	subs     *webhookSubscriptionRepo
	prs      *webhookPracticeRepo
	bus      *recordingEventBus
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	invoices := &webhookInvoiceRepo{}
	subs := &webhookSubscriptionRepo{}
	prs := &webhookPracticeRepo{}
	bus := &recordingEventBus{}

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	cfg := &infrabilling.StripeConfig{
		SecretKey:       "sk_test_123",
		WebhookSecret:   testWebhookSecret,
		DefaultCurrency: "usd",
		PriceIDs: map[domainbilling.SubscriptionPlan]string{
			domainbilling.SubscriptionPlanFree: "",
			domainbilling.SubscriptionPlanSolo: "price_solo",
			domainbilling.SubscriptionPlanFirm: "price_firm",
		},
	}

	service := NewStripeWebhookService(StripeWebhookServiceConfig{
		Config:           cfg,
		InvoiceRepo:      invoices,
		SubscriptionRepo: subs,
		PracticeRepo:     prs,
		Idempotency:      store,
		EventBus:         bus,
		Logger:           zap.NewNop(),
	})

	return &webhookFixture{service: service, invoices: invoices, subs: subs, prs: prs, bus: bus}
}

// finalizedInvoice builds an OPEN invoice totaling 1025.00 (1000 subtotal
// plus the 2.5% platform fee) linked to the given Stripe references.
func finalizedInvoice(t *testing.T, paymentIntentID, stripeInvoiceID string) *domainbilling.Invoice {
	t.Helper()

	clientID := uuid.New()
	inv, err := domainbilling.NewInvoice(uuid.New(), "INV-20260815-00001", domainbilling.InvoiceKindMatter,
		&clientID, "Riverside Mediation Client", domainbilling.DefaultFeePolicy(), valueobject.USD)
	require.NoError(t, err)
	require.NoError(t, inv.AddLineItem("Mediation session", decimal.NewFromInt(4), decimal.NewFromInt(250)))
	require.NoError(t, inv.Finalize(time.Now().Add(30*24*time.Hour)))
	inv.SetStripeReferences(paymentIntentID, stripeInvoiceID)
	inv.ClearDomainEvents()
	return inv
}

func TestProcessWebhook_RejectsInvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := webhookPayload(t, "evt_1", "payment_intent.succeeded", map[string]any{
		"id":     "pi_1",
		"object": "payment_intent",
	})

	_, err := f.service.ProcessWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestProcessWebhook_PaymentIntentSucceeded_AppliesPayment(t *testing.T) {
	f := newWebhookFixture(t)
	inv := finalizedInvoice(t, "pi_123", "")
	f.invoices.add(inv)

	payload := webhookPayload(t, "evt_pi_1", "payment_intent.succeeded", map[string]any{
		"id":              "pi_123",
		"object":          "payment_intent",
		"amount":          102500,
		"amount_received": 102500,
		"currency":        "usd",
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, domainbilling.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.HasPaymentReference("pi_123"))
	assert.Equal(t, 1, f.invoices.saved)
	assert.Contains(t, f.bus.eventTypes(), "InvoicePaid")
	assert.Contains(t, f.bus.eventTypes(), EventTypeStripeInvoicePaid)
}

func TestProcessWebhook_DuplicateEventIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	inv := finalizedInvoice(t, "pi_dup", "")
	f.invoices.add(inv)

	payload := webhookPayload(t, "evt_dup", "payment_intent.succeeded", map[string]any{
		"id":              "pi_dup",
		"object":          "payment_intent",
		"amount":          102500,
		"amount_received": 102500,
	})
	sig := signPayload(payload, testWebhookSecret)

	first, err := f.service.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := f.service.ProcessWebhook(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, "Event already processed", second.Message)
	assert.Equal(t, 1, f.invoices.saved)
}

func TestProcessWebhook_RedeliveredPaymentIntentIsNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	inv := finalizedInvoice(t, "pi_redeliver", "")
	f.invoices.add(inv)

	object := map[string]any{
		"id":              "pi_redeliver",
		"object":          "payment_intent",
		"amount":          102500,
		"amount_received": 102500,
	}

	payload := webhookPayload(t, "evt_r1", "payment_intent.succeeded", object)
	_, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)

	// Same payment intent under a fresh event ID: the recorded payment
	// reference must keep the invoice from being paid twice
	payload = webhookPayload(t, "evt_r2", "payment_intent.succeeded", object)
	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, 1, inv.PaymentCount())
	assert.Equal(t, 1, f.invoices.saved)
}

func TestProcessWebhook_UnmatchedPaymentIntentAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	payload := webhookPayload(t, "evt_unmatched", "payment_intent.succeeded", map[string]any{
		"id":     "pi_unknown",
		"object": "payment_intent",
		"amount": 5000,
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, 0, f.invoices.saved)
}

func TestProcessWebhook_UnknownEventType(t *testing.T) {
	f := newWebhookFixture(t)

	payload := webhookPayload(t, "evt_unknown", "charge.refunded", map[string]any{
		"id":     "ch_1",
		"object": "charge",
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "Event type not handled", result.Message)
}

func TestProcessWebhook_PaymentIntentFailed_PublishesWithoutMutation(t *testing.T) {
	f := newWebhookFixture(t)
	inv := finalizedInvoice(t, "pi_fail", "")
	f.invoices.add(inv)

	payload := webhookPayload(t, "evt_fail", "payment_intent.payment_failed", map[string]any{
		"id":     "pi_fail",
		"object": "payment_intent",
		"amount": 102500,
		"last_payment_error": map[string]any{
			"message": "Your card was declined.",
		},
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, domainbilling.InvoiceStatusOpen, inv.Status)
	assert.Equal(t, 0, f.invoices.saved)
	assert.Contains(t, f.bus.eventTypes(), "InvoicePaymentFailed")
	assert.Contains(t, f.bus.eventTypes(), EventTypeStripePaymentFailed)
}

func TestProcessWebhook_SubscriptionUpdated_FallsBackToCustomerLookup(t *testing.T) {
	f := newWebhookFixture(t)

	practice, err := identity.NewPractice("RIVERSIDE", "Riverside Mediation")
	require.NoError(t, err)
	require.NoError(t, practice.LinkStripeCustomer("cus_42"))
	practice.ClearDomainEvents()
	f.prs.add(practice)

	sub, err := domainbilling.NewSubscription(practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	sub.StripeCustomerID = "cus_42"
	sub.ClearDomainEvents()
	f.subs.add(sub)

	payload := webhookPayload(t, "evt_sub_upd", "customer.subscription.updated", map[string]any{
		"id":       "sub_42",
		"object":   "subscription",
		"status":   "past_due",
		"customer": map[string]any{"id": "cus_42"},
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": "price_solo"}},
			},
		},
		"current_period_start": time.Now().Add(-24 * time.Hour).Unix(),
		"current_period_end":   time.Now().Add(29 * 24 * time.Hour).Unix(),
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, "sub_42", sub.StripeSubscriptionID)
	assert.Equal(t, domainbilling.SubscriptionStatusPastDue, sub.Status)
	assert.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, 1, f.subs.saved)
	assert.Contains(t, f.bus.eventTypes(), EventTypeStripeSubscriptionUpdated)
}

func TestProcessWebhook_SubscriptionUpdated_RealignsPlanFromPrice(t *testing.T) {
	f := newWebhookFixture(t)

	practice, err := identity.NewPractice("OAKMONT", "Oakmont Mediation Group")
	require.NoError(t, err)
	practice.ClearDomainEvents()
	f.prs.add(practice)

	sub, err := domainbilling.NewSubscription(practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_oak", "sub_oak", "price_solo"))
	sub.ClearDomainEvents()
	f.subs.add(sub)

	payload := webhookPayload(t, "evt_sub_plan", "customer.subscription.updated", map[string]any{
		"id":       "sub_oak",
		"object":   "subscription",
		"status":   "active",
		"customer": map[string]any{"id": "cus_oak"},
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": "price_firm"}},
			},
		},
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, domainbilling.SubscriptionPlanFirm, sub.Plan)
	assert.Equal(t, "price_firm", sub.StripePriceID)
	assert.Contains(t, f.bus.eventTypes(), "SubscriptionPlanChanged")
}

func TestProcessWebhook_SubscriptionUnpaid_SuspendsPractice(t *testing.T) {
	f := newWebhookFixture(t)

	practice, err := identity.NewPractice("HARBOR", "Harbor Dispute Resolution")
	require.NoError(t, err)
	practice.ClearDomainEvents()
	f.prs.add(practice)

	sub, err := domainbilling.NewSubscription(practice.ID, domainbilling.SubscriptionPlanFirm)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_h", "sub_h", "price_firm"))
	sub.ClearDomainEvents()
	f.subs.add(sub)

	payload := webhookPayload(t, "evt_sub_unpaid", "customer.subscription.updated", map[string]any{
		"id":       "sub_h",
		"object":   "subscription",
		"status":   "unpaid",
		"customer": map[string]any{"id": "cus_h"},
	})

	_, err = f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, domainbilling.SubscriptionStatusUnpaid, sub.Status)
	assert.Equal(t, identity.PracticeStatusSuspended, practice.Status)
	assert.GreaterOrEqual(t, f.prs.saved, 1)
}

func TestProcessWebhook_SubscriptionDeleted_CancelsLocally(t *testing.T) {
	f := newWebhookFixture(t)

	practice, err := identity.NewPractice("CEDAR", "Cedar Valley Mediation")
	require.NoError(t, err)
	practice.ClearDomainEvents()
	f.prs.add(practice)

	sub, err := domainbilling.NewSubscription(practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_c", "sub_c", "price_solo"))
	sub.ClearDomainEvents()
	f.subs.add(sub)

	payload := webhookPayload(t, "evt_sub_del", "customer.subscription.deleted", map[string]any{
		"id":       "sub_c",
		"object":   "subscription",
		"status":   "canceled",
		"customer": map[string]any{"id": "cus_c"},
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, domainbilling.SubscriptionStatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)
	assert.Contains(t, f.bus.eventTypes(), EventTypeStripeSubscriptionDeleted)
}

func TestProcessWebhook_UnknownSubscriptionAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	payload := webhookPayload(t, "evt_sub_unknown", "customer.subscription.updated", map[string]any{
		"id":       "sub_missing",
		"object":   "subscription",
		"status":   "active",
		"customer": map[string]any{"id": "cus_missing"},
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, 0, f.subs.saved)
}

func TestProcessWebhook_InvoicePaid_AppliesToLocalInvoice(t *testing.T) {
	f := newWebhookFixture(t)
	inv := finalizedInvoice(t, "", "in_77")
	f.invoices.add(inv)

	payload := webhookPayload(t, "evt_inv_paid", "invoice.paid", map[string]any{
		"id":          "in_77",
		"object":      "invoice",
		"amount_paid": 102500,
		"customer":    map[string]any{"id": "cus_77"},
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, domainbilling.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.HasPaymentReference("stripe_invoice:in_77"))
}

func TestProcessWebhook_InvoiceVoided_VoidsLocalInvoice(t *testing.T) {
	f := newWebhookFixture(t)
	inv := finalizedInvoice(t, "", "in_void")
	f.invoices.add(inv)

	payload := webhookPayload(t, "evt_inv_void", "invoice.voided", map[string]any{
		"id":       "in_void",
		"object":   "invoice",
		"customer": map[string]any{"id": "cus_v"},
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, domainbilling.InvoiceStatusVoid, inv.Status)
}

func TestProcessWebhook_AccountUpdated_SyncsCapabilities(t *testing.T) {
	f := newWebhookFixture(t)

	practice, err := identity.NewPractice("WILLOW", "Willow Creek Mediation")
	require.NoError(t, err)
	require.NoError(t, practice.LinkStripeAccount("acct_9"))
	practice.ClearDomainEvents()
	f.prs.add(practice)

	payload := webhookPayload(t, "evt_acct", "account.updated", map[string]any{
		"id":                "acct_9",
		"object":            "account",
		"charges_enabled":   true,
		"payouts_enabled":   true,
		"details_submitted": true,
	})

	result, err := f.service.ProcessWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.True(t, practice.ChargesEnabled)
	assert.True(t, practice.PayoutsEnabled)
	assert.True(t, practice.DetailsSubmitted)
	assert.Equal(t, 1, f.prs.saved)
	assert.Contains(t, f.bus.eventTypes(), EventTypeStripeAccountUpdated)
}
