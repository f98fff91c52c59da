package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
	"go.uber.org/zap"
)

// mockBackend implements stripe.Backend for testing
type mockBackend struct {
	handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)
}

func (m *mockBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	data, err := m.handler(method, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (m *mockBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

func setupMockBackend(handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)) func() {
	mock := &mockBackend{handler: handler}
	stripe.SetBackend(stripe.APIBackend, mock)
	return func() {
		stripe.SetBackend(stripe.APIBackend, nil)
	}
}

func testStripeConfig() *StripeConfig {
	return NewStripeConfig(config.StripeConfig{
		SecretKey:      "sk_test_123456789",
		WebhookSecret:  "whsec_test_123456789",
		PriceIDSolo:    "price_solo_test",
		PriceIDFirm:    "price_firm_test",
		PriceIDEnt:     "price_ent_test",
		TrialDays:      14,
		PaymentMethods: []string{"card"},
	})
}

func TestStripeConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, testStripeConfig().Validate())
	})

	t.Run("missing secret key", func(t *testing.T) {
		cfg := testStripeConfig()
		cfg.SecretKey = ""
		assert.ErrorContains(t, cfg.Validate(), "secret key is required")
	})

	t.Run("malformed secret key", func(t *testing.T) {
		cfg := testStripeConfig()
		cfg.SecretKey = "whsec_not_a_secret_key"
		assert.ErrorContains(t, cfg.Validate(), "must start with sk_")
	})
}

func TestStripeConfig_PriceIDForPlan(t *testing.T) {
	cfg := testStripeConfig()

	priceID, err := cfg.PriceIDForPlan(billing.SubscriptionPlanFirm)
	require.NoError(t, err)
	assert.Equal(t, "price_firm_test", priceID)

	// Free plan has no Stripe price
	priceID, err = cfg.PriceIDForPlan(billing.SubscriptionPlanFree)
	require.NoError(t, err)
	assert.Empty(t, priceID)

	_, err = cfg.PriceIDForPlan(billing.SubscriptionPlan("nonexistent"))
	assert.Error(t, err)
}

func TestStripeConfig_PriceIDForPlan_Unset(t *testing.T) {
	cfg := testStripeConfig()
	cfg.PriceIDs[billing.SubscriptionPlanSolo] = ""

	_, err := cfg.PriceIDForPlan(billing.SubscriptionPlanSolo)
	assert.ErrorContains(t, err, "price ID not set")
}

func TestStripeConfig_PlanForPriceID(t *testing.T) {
	cfg := testStripeConfig()

	plan, ok := cfg.PlanForPriceID("price_ent_test")
	require.True(t, ok)
	assert.Equal(t, billing.SubscriptionPlanEnterprise, plan)

	plan, ok = cfg.PlanForPriceID("")
	require.True(t, ok)
	assert.Equal(t, billing.SubscriptionPlanFree, plan)

	_, ok = cfg.PlanForPriceID("price_unknown")
	assert.False(t, ok)
}

func TestNewStripeAdapter_InvalidConfig(t *testing.T) {
	cfg := testStripeConfig()
	cfg.SecretKey = ""

	adapter, err := NewStripeAdapter(cfg, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, adapter)
}

func TestMapStripeSubscriptionStatus(t *testing.T) {
	tests := []struct {
		stripeStatus stripe.SubscriptionStatus
		expected     billing.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusTrialing, billing.SubscriptionStatusTrialing},
		{stripe.SubscriptionStatusActive, billing.SubscriptionStatusActive},
		{stripe.SubscriptionStatusPastDue, billing.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusIncomplete, billing.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, billing.SubscriptionStatusUnpaid},
		{stripe.SubscriptionStatusPaused, billing.SubscriptionStatusUnpaid},
		{stripe.SubscriptionStatusCanceled, billing.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, billing.SubscriptionStatusCanceled},
	}

	for _, tt := range tests {
		t.Run(string(tt.stripeStatus), func(t *testing.T) {
			assert.Equal(t, tt.expected, MapStripeSubscriptionStatus(tt.stripeStatus))
		})
	}
}

func TestStripeAdapter_CreateSubscription_FreePlanSkipsStripe(t *testing.T) {
	adapter, err := NewStripeAdapter(testStripeConfig(), zap.NewNop())
	require.NoError(t, err)

	out, err := adapter.CreateSubscription(context.Background(), CreateSubscriptionInput{
		PracticeID: uuid.New(),
		CustomerID: "cus_123",
		Plan:       billing.SubscriptionPlanFree,
	})

	require.NoError(t, err)
	assert.Empty(t, out.SubscriptionID)
	assert.Equal(t, "cus_123", out.CustomerID)
	assert.Equal(t, billing.SubscriptionStatusActive, out.Status)
}

func TestStripeAdapter_CreatePaymentIntent_ConvertsToMinorUnits(t *testing.T) {
	adapter, err := NewStripeAdapter(testStripeConfig(), zap.NewNop())
	require.NoError(t, err)

	invoiceID := uuid.New()
	practiceID := uuid.New()

	teardown := setupMockBackend(func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		piParams, ok := params.(*stripe.PaymentIntentParams)
		require.True(t, ok)
		assert.Equal(t, int64(102550), *piParams.Amount) // 1025.50 -> cents
		assert.Equal(t, "usd", *piParams.Currency)
		assert.Equal(t, invoiceID.String(), piParams.Metadata["invoice_id"])
		assert.Equal(t, practiceID.String(), piParams.Metadata["practice_id"])

		return json.Marshal(map[string]any{
			"id":            "pi_test_123",
			"client_secret": "pi_test_123_secret",
			"status":        "requires_payment_method",
			"amount":        102550,
			"currency":      "usd",
		})
	})
	defer teardown()

	out, err := adapter.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		PracticeID: practiceID,
		InvoiceID:  invoiceID,
		CustomerID: "cus_123",
		Amount:     decimal.NewFromFloat(1025.50),
		Currency:   "usd",
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_test_123", out.PaymentIntentID)
	assert.Equal(t, "pi_test_123_secret", out.ClientSecret)
	assert.Equal(t, int64(102550), out.AmountMinor)
}
