package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// svcSubscriptionRepo serves the subscription service's slice of SubscriptionRepository
type svcSubscriptionRepo struct {
	domainbilling.SubscriptionRepository

	mu         sync.Mutex
	byPractice map[uuid.UUID]*domainbilling.Subscription
	saved      int
}

func newSvcSubscriptionRepo() *svcSubscriptionRepo {
	return &svcSubscriptionRepo{byPractice: make(map[uuid.UUID]*domainbilling.Subscription)}
}

func (f *svcSubscriptionRepo) FindByPracticeID(ctx context.Context, practiceID uuid.UUID) (*domainbilling.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.byPractice[practiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return sub, nil
}

func (f *svcSubscriptionRepo) Save(ctx context.Context, sub *domainbilling.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPractice[sub.PracticeID] = sub
	f.saved++
	return nil
}

func (f *svcSubscriptionRepo) SaveWithLock(ctx context.Context, sub *domainbilling.Subscription) error {
	return f.Save(ctx, sub)
}

type subscriptionFixture struct {
	service   *SubscriptionService
	subs      *svcSubscriptionRepo
	prs       *svcPracticeRepo
	processor *fakeProcessor
	bus       *recordingEventBus
	practice  *identity.Practice
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()

	practice, err := identity.NewPractice("MAPLE", "Maple Grove Mediation")
	require.NoError(t, err)
	practice.ContactEmail = "billing@maplegrove.example.com"
	practice.ClearDomainEvents()

	subs := newSvcSubscriptionRepo()
	prs := newSvcPracticeRepo()
	prs.add(practice)
	processor := &fakeProcessor{}
	bus := &recordingEventBus{}

	cfg := &infrabilling.StripeConfig{
		SecretKey:       "sk_test_123",
		WebhookSecret:   "whsec_123",
		DefaultCurrency: "usd",
		PriceIDs: map[domainbilling.SubscriptionPlan]string{
			domainbilling.SubscriptionPlanFree: "",
			domainbilling.SubscriptionPlanSolo: "price_solo",
			domainbilling.SubscriptionPlanFirm: "price_firm",
		},
	}

	service := NewSubscriptionService(SubscriptionServiceConfig{
		SubscriptionRepo: subs,
		PracticeRepo:     prs,
		Processor:        processor,
		Config:           cfg,
		EventBus:         bus,
		Logger:           zap.NewNop(),
	})

	return &subscriptionFixture{
		service:   service,
		subs:      subs,
		prs:       prs,
		processor: processor,
		bus:       bus,
		practice:  practice,
	}
}

func periodOutput(subID, customerID, priceID string, status domainbilling.SubscriptionStatus) *infrabilling.SubscriptionOutput {
	start := time.Now()
	end := start.AddDate(0, 1, 0)
	return &infrabilling.SubscriptionOutput{
		SubscriptionID:     subID,
		CustomerID:         customerID,
		Status:             status,
		PriceID:            priceID,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
}

func TestSubscriptionService_Subscribe_CreatesCustomerAndSubscription(t *testing.T) {
	f := newSubscriptionFixture(t)

	f.processor.customerOut = &infrabilling.CustomerOutput{CustomerID: "cus_maple"}
	out := periodOutput("sub_maple", "cus_maple", "price_solo", domainbilling.SubscriptionStatusActive)
	out.ClientSecret = "pi_setup_secret"
	f.processor.subscriptionOut = out

	resp, err := f.service.Subscribe(context.Background(), f.practice.ID, SubscribeInput{
		Plan:            domainbilling.SubscriptionPlanSolo,
		PaymentMethodID: "pm_card",
	})
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.SubscriptionPlanSolo), resp.Plan)
	assert.Equal(t, string(domainbilling.SubscriptionStatusActive), resp.Status)
	assert.Equal(t, "sub_maple", resp.StripeSubscriptionID)
	assert.Equal(t, "price_solo", resp.StripePriceID)
	assert.Equal(t, "pi_setup_secret", resp.ClientSecret)
	assert.NotNil(t, resp.CurrentPeriodEnd)

	// Practice picked up the new Stripe customer
	assert.Equal(t, "cus_maple", f.practice.StripeCustomerID)
	assert.GreaterOrEqual(t, f.prs.saved, 1)

	require.NotNil(t, f.processor.subscriptionInput)
	assert.Equal(t, "price_solo", f.processor.subscriptionInput.PriceID)
	assert.Equal(t, "pm_card", f.processor.subscriptionInput.PaymentMethodID)
}

func TestSubscriptionService_Subscribe_AlreadySubscribed(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_m", "sub_m", "price_solo"))
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	_, err = f.service.Subscribe(context.Background(), f.practice.ID, SubscribeInput{
		Plan: domainbilling.SubscriptionPlanFirm,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALREADY_SUBSCRIBED", domainErr.Code)
}

func TestSubscriptionService_ChangePlan(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_m", "sub_m", "price_solo"))
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	f.processor.updateOut = periodOutput("sub_m", "cus_m", "price_firm", domainbilling.SubscriptionStatusActive)

	resp, err := f.service.ChangePlan(context.Background(), f.practice.ID, ChangePlanInput{
		Plan: domainbilling.SubscriptionPlanFirm,
	})
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.SubscriptionPlanFirm), resp.Plan)
	assert.Equal(t, "price_firm", resp.StripePriceID)

	require.NotNil(t, f.processor.updateInput)
	assert.Equal(t, "sub_m", f.processor.updateInput.SubscriptionID)
	assert.Equal(t, "price_firm", f.processor.updateInput.NewPriceID)
}

func TestSubscriptionService_ChangePlan_WithoutSubscription(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanFree)
	require.NoError(t, err)
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	_, err = f.service.ChangePlan(context.Background(), f.practice.ID, ChangePlanInput{
		Plan: domainbilling.SubscriptionPlanFirm,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_SUBSCRIBED", domainErr.Code)
}

func TestSubscriptionService_Cancel_AtPeriodEnd(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_m", "sub_m", "price_solo"))
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	out := periodOutput("sub_m", "cus_m", "price_solo", domainbilling.SubscriptionStatusActive)
	out.CancelAtPeriodEnd = true
	f.processor.cancelOut = out

	resp, err := f.service.Cancel(context.Background(), f.practice.ID, CancelInput{AtPeriodEnd: true})
	require.NoError(t, err)

	// Still active; Stripe will send subscription.deleted at period end
	assert.Equal(t, string(domainbilling.SubscriptionStatusActive), resp.Status)
	assert.True(t, resp.CancelAtPeriodEnd)

	require.NotNil(t, f.processor.cancelInput)
	assert.True(t, f.processor.cancelInput.AtPeriodEnd)
}

func TestSubscriptionService_Cancel_Immediately(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_m", "sub_m", "price_solo"))
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	f.processor.cancelOut = periodOutput("sub_m", "cus_m", "price_solo", domainbilling.SubscriptionStatusCanceled)

	resp, err := f.service.Cancel(context.Background(), f.practice.ID, CancelInput{Reason: "Closing the practice"})
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.SubscriptionStatusCanceled), resp.Status)
	assert.NotNil(t, resp.CanceledAt)
}

func TestSubscriptionService_Resume(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_m", "sub_m", "price_solo"))
	_, err = sub.SyncFromStripe(domainbilling.SyncSnapshot{
		Status:            domainbilling.SubscriptionStatusActive,
		PriceID:           "price_solo",
		CancelAtPeriodEnd: true,
	})
	require.NoError(t, err)
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	f.processor.resumeOut = periodOutput("sub_m", "cus_m", "price_solo", domainbilling.SubscriptionStatusActive)

	resp, err := f.service.Resume(context.Background(), f.practice.ID)
	require.NoError(t, err)
	assert.False(t, resp.CancelAtPeriodEnd)
}

func TestSubscriptionService_GetForPractice_CreatesFreeRecord(t *testing.T) {
	f := newSubscriptionFixture(t)

	resp, err := f.service.GetForPractice(context.Background(), f.practice.ID)
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.SubscriptionPlanFree), resp.Plan)
	assert.Equal(t, string(domainbilling.SubscriptionStatusActive), resp.Status)
	assert.Equal(t, 1, f.subs.saved)
}

func TestSubscriptionService_RefreshFromStripe(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := domainbilling.NewSubscription(f.practice.ID, domainbilling.SubscriptionPlanSolo)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_m", "sub_m", "price_solo"))
	sub.ClearDomainEvents()
	require.NoError(t, f.subs.Save(context.Background(), sub))

	f.processor.getOut = periodOutput("sub_m", "cus_m", "price_solo", domainbilling.SubscriptionStatusPastDue)

	resp, err := f.service.RefreshFromStripe(context.Background(), f.practice.ID)
	require.NoError(t, err)

	assert.Equal(t, string(domainbilling.SubscriptionStatusPastDue), resp.Status)
	assert.NotNil(t, resp.LastSyncedAt)
	assert.Contains(t, f.bus.eventTypes(), "SubscriptionStatusChanged")
}
