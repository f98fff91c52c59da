package billing

import (
	"fmt"
	"strings"

	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/infrastructure/config"
	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds the Stripe integration settings used by the adapter
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret verifies webhook signatures
	WebhookSecret string

	// DefaultCurrency for client invoices and platform subscriptions
	DefaultCurrency string

	// TrialDays is the trial period granted on new paid subscriptions
	TrialDays int

	// PaymentMethods allowed on payment intents (card, us_bank_account, ...)
	PaymentMethods []string

	// PriceIDs maps subscription plans to Stripe Price IDs.
	// The free plan has no price and no Stripe subscription.
	PriceIDs map[billing.SubscriptionPlan]string
}

// NewStripeConfig builds the adapter configuration from application config
func NewStripeConfig(cfg config.StripeConfig) *StripeConfig {
	return &StripeConfig{
		SecretKey:       cfg.SecretKey,
		WebhookSecret:   cfg.WebhookSecret,
		DefaultCurrency: "usd",
		TrialDays:       cfg.TrialDays,
		PaymentMethods:  cfg.PaymentMethods,
		PriceIDs: map[billing.SubscriptionPlan]string{
			billing.SubscriptionPlanFree:       "",
			billing.SubscriptionPlanSolo:       cfg.PriceIDSolo,
			billing.SubscriptionPlanFirm:       cfg.PriceIDFirm,
			billing.SubscriptionPlanEnterprise: cfg.PriceIDEnt,
		},
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") {
		return fmt.Errorf("stripe: secret key must start with sk_")
	}
	if c.DefaultCurrency == "" {
		return fmt.Errorf("stripe: default currency is required")
	}
	return nil
}

// IsTestMode reports whether the configured key is a test key
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.SecretKey, "sk_test_")
}

// PriceIDForPlan returns the Stripe Price ID for a plan
func (c *StripeConfig) PriceIDForPlan(plan billing.SubscriptionPlan) (string, error) {
	priceID, exists := c.PriceIDs[plan]
	if !exists {
		return "", fmt.Errorf("stripe: no price configured for plan %q", plan)
	}
	if priceID == "" && plan != billing.SubscriptionPlanFree {
		return "", fmt.Errorf("stripe: price ID not set for plan %q", plan)
	}
	return priceID, nil
}

// PlanForPriceID resolves a plan from a Stripe Price ID. Used when
// reconciling webhook events, where only the price is known.
func (c *StripeConfig) PlanForPriceID(priceID string) (billing.SubscriptionPlan, bool) {
	if priceID == "" {
		return billing.SubscriptionPlanFree, true
	}
	for plan, id := range c.PriceIDs {
		if id == priceID {
			return plan, true
		}
	}
	return "", false
}

// InitStripeClient sets the package-level Stripe API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
