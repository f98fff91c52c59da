package billing

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/account"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/subscription"
	"go.uber.org/zap"
)

// StripeAdapter implements Processor against the Stripe API
type StripeAdapter struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.InitStripeClient()

	return &StripeAdapter{
		config: config,
		logger: logger,
	}, nil
}

// CreateCustomer creates a Stripe customer for a practice or a client
func (a *StripeAdapter) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*CustomerOutput, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(input.Email),
		Name:  stripe.String(input.Name),
	}
	params.Context = ctx

	if input.Phone != "" {
		params.Phone = stripe.String(input.Phone)
	}
	if input.Description != "" {
		params.Description = stripe.String(input.Description)
	}

	params.Metadata = map[string]string{
		"practice_id": input.PracticeID.String(),
	}
	if input.ClientID != nil {
		params.Metadata["client_id"] = input.ClientID.String()
	}
	maps.Copy(params.Metadata, input.Metadata)

	cust, err := customer.New(params)
	if err != nil {
		a.logger.Error("failed to create Stripe customer",
			zap.String("practice_id", input.PracticeID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	a.logger.Info("created Stripe customer",
		zap.String("practice_id", input.PracticeID.String()),
		zap.String("customer_id", cust.ID))

	return customerOutput(cust), nil
}

// GetCustomer retrieves a customer from Stripe
func (a *StripeAdapter) GetCustomer(ctx context.Context, customerID string) (*CustomerOutput, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := customer.Get(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get customer: %w", err)
	}
	return customerOutput(cust), nil
}

// UpdateCustomer updates a customer in Stripe
func (a *StripeAdapter) UpdateCustomer(ctx context.Context, customerID string, input CreateCustomerInput) (*CustomerOutput, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(input.Email),
		Name:  stripe.String(input.Name),
	}
	params.Context = ctx

	if input.Phone != "" {
		params.Phone = stripe.String(input.Phone)
	}
	if len(input.Metadata) > 0 {
		params.Metadata = input.Metadata
	}

	cust, err := customer.Update(customerID, params)
	if err != nil {
		a.logger.Error("failed to update Stripe customer",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to update customer: %w", err)
	}
	return customerOutput(cust), nil
}

// CreateSubscription creates a platform subscription in Stripe. The free
// plan never reaches Stripe; callers get an active output with no
// subscription ID.
func (a *StripeAdapter) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*SubscriptionOutput, error) {
	priceID := input.PriceID
	if priceID == "" {
		var err error
		priceID, err = a.config.PriceIDForPlan(input.Plan)
		if err != nil {
			return nil, err
		}
	}

	if priceID == "" && input.Plan == billing.SubscriptionPlanFree {
		return &SubscriptionOutput{
			CustomerID: input.CustomerID,
			Status:     billing.SubscriptionStatusActive,
		}, nil
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(input.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	params.Context = ctx
	params.PaymentBehavior = stripe.String("default_incomplete")
	params.AddExpand("latest_invoice.payment_intent")

	trialDays := input.TrialDays
	if trialDays == 0 {
		trialDays = a.config.TrialDays
	}
	if trialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(trialDays))
	}

	if input.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(input.PaymentMethodID)
	}

	params.Metadata = map[string]string{
		"practice_id": input.PracticeID.String(),
		"plan":        string(input.Plan),
	}
	maps.Copy(params.Metadata, input.Metadata)

	sub, err := subscription.New(params)
	if err != nil {
		a.logger.Error("failed to create Stripe subscription",
			zap.String("practice_id", input.PracticeID.String()),
			zap.String("customer_id", input.CustomerID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create subscription: %w", err)
	}

	a.logger.Info("created Stripe subscription",
		zap.String("practice_id", input.PracticeID.String()),
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))

	return subscriptionOutput(sub), nil
}

// UpdateSubscriptionPlan moves a subscription to a new price with proration
func (a *StripeAdapter) UpdateSubscriptionPlan(ctx context.Context, input UpdateSubscriptionInput) (*SubscriptionOutput, error) {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx

	sub, err := subscription.Get(input.SubscriptionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get subscription: %w", err)
	}
	if len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("stripe: subscription %s has no items", input.SubscriptionID)
	}
	itemID := sub.Items.Data[0].ID

	newPriceID := input.NewPriceID
	if newPriceID == "" {
		newPriceID, err = a.config.PriceIDForPlan(input.NewPlan)
		if err != nil {
			return nil, err
		}
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(newPriceID),
			},
		},
		CancelAtPeriodEnd: stripe.Bool(input.CancelAtPeriodEnd),
	}
	params.Context = ctx

	if input.ProrationBehavior != "" {
		params.ProrationBehavior = stripe.String(input.ProrationBehavior)
	} else {
		params.ProrationBehavior = stripe.String("create_prorations")
	}

	params.Metadata = map[string]string{"plan": string(input.NewPlan)}

	updated, err := subscription.Update(input.SubscriptionID, params)
	if err != nil {
		a.logger.Error("failed to update Stripe subscription",
			zap.String("subscription_id", input.SubscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to update subscription: %w", err)
	}

	a.logger.Info("updated Stripe subscription plan",
		zap.String("subscription_id", updated.ID),
		zap.String("new_price", newPriceID))

	return subscriptionOutput(updated), nil
}

// CancelSubscription cancels a subscription, immediately or at period end
func (a *StripeAdapter) CancelSubscription(ctx context.Context, input CancelSubscriptionInput) (*SubscriptionOutput, error) {
	var sub *stripe.Subscription
	var err error

	if input.AtPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx
		if input.Reason != "" {
			params.CancellationDetails = &stripe.SubscriptionCancellationDetailsParams{
				Comment: stripe.String(input.Reason),
			}
		}
		sub, err = subscription.Update(input.SubscriptionID, params)
	} else {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		if input.Reason != "" {
			params.CancellationDetails = &stripe.SubscriptionCancelCancellationDetailsParams{
				Comment: stripe.String(input.Reason),
			}
		}
		sub, err = subscription.Cancel(input.SubscriptionID, params)
	}

	if err != nil {
		a.logger.Error("failed to cancel Stripe subscription",
			zap.String("subscription_id", input.SubscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	a.logger.Info("canceled Stripe subscription",
		zap.String("subscription_id", sub.ID),
		zap.Bool("at_period_end", sub.CancelAtPeriodEnd))

	return subscriptionOutput(sub), nil
}

// ResumeSubscription clears a pending cancel-at-period-end
func (a *StripeAdapter) ResumeSubscription(ctx context.Context, practiceID uuid.UUID, subscriptionID string) (*SubscriptionOutput, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		a.logger.Error("failed to resume Stripe subscription",
			zap.String("practice_id", practiceID.String()),
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to resume subscription: %w", err)
	}

	a.logger.Info("resumed Stripe subscription",
		zap.String("subscription_id", sub.ID))

	return subscriptionOutput(sub), nil
}

// GetSubscription retrieves the current subscription state from Stripe
func (a *StripeAdapter) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionOutput, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("latest_invoice")

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get subscription: %w", err)
	}
	return subscriptionOutput(sub), nil
}

// CreatePaymentIntent creates a payment intent for a client invoice.
// The amount is converted to the currency's minor unit.
func (a *StripeAdapter) CreatePaymentIntent(ctx context.Context, input CreatePaymentIntentInput) (*PaymentIntentOutput, error) {
	currency := input.Currency
	if currency == "" {
		currency = a.config.DefaultCurrency
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.Amount.Shift(2).Round(0).IntPart()),
		Currency: stripe.String(currency),
	}
	params.Context = ctx

	if len(a.config.PaymentMethods) > 0 {
		params.PaymentMethodTypes = stripe.StringSlice(a.config.PaymentMethods)
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}
	if input.Description != "" {
		params.Description = stripe.String(input.Description)
	}

	params.Metadata = map[string]string{
		"practice_id": input.PracticeID.String(),
		"invoice_id":  input.InvoiceID.String(),
	}
	maps.Copy(params.Metadata, input.Metadata)

	pi, err := paymentintent.New(params)
	if err != nil {
		a.logger.Error("failed to create Stripe payment intent",
			zap.String("practice_id", input.PracticeID.String()),
			zap.String("invoice_id", input.InvoiceID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create payment intent: %w", err)
	}

	a.logger.Info("created Stripe payment intent",
		zap.String("invoice_id", input.InvoiceID.String()),
		zap.String("payment_intent_id", pi.ID))

	return paymentIntentOutput(pi), nil
}

// GetPaymentIntent retrieves a payment intent from Stripe
func (a *StripeAdapter) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntentOutput, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get payment intent: %w", err)
	}
	return paymentIntentOutput(pi), nil
}

// GetAccount retrieves a connected account's capability flags
func (a *StripeAdapter) GetAccount(ctx context.Context, accountID string) (*AccountOutput, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get account: %w", err)
	}

	return &AccountOutput{
		AccountID:        acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}, nil
}

func customerOutput(cust *stripe.Customer) *CustomerOutput {
	return &CustomerOutput{
		CustomerID: cust.ID,
		Email:      cust.Email,
		Name:       cust.Name,
		CreatedAt:  time.Unix(cust.Created, 0),
	}
}

func subscriptionOutput(sub *stripe.Subscription) *SubscriptionOutput {
	out := &SubscriptionOutput{
		SubscriptionID:     sub.ID,
		Status:             MapStripeSubscriptionStatus(sub.Status),
		CurrentPeriodStart: unixTimePtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTimePtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		TrialEnd:           unixTimePtr(sub.TrialEnd),
		CanceledAt:         unixTimePtr(sub.CanceledAt),
	}

	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if len(sub.Items.Data) > 0 {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
		if sub.LatestInvoice.PaymentIntent != nil {
			out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
		}
	}

	return out
}

func paymentIntentOutput(pi *stripe.PaymentIntent) *PaymentIntentOutput {
	return &PaymentIntentOutput{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Status:          string(pi.Status),
		AmountMinor:     pi.Amount,
		Currency:        string(pi.Currency),
	}
}

func unixTimePtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}

// MapStripeSubscriptionStatus collapses the Stripe lifecycle onto the
// statuses the Subscription aggregate tracks. Incomplete first payments are
// treated as past_due; an expired incomplete or paused subscription grants
// no access.
func MapStripeSubscriptionStatus(status stripe.SubscriptionStatus) billing.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return billing.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusActive:
		return billing.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete:
		return billing.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return billing.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return billing.SubscriptionStatusCanceled
	default:
		return billing.SubscriptionStatus(status)
	}
}

// Ensure StripeAdapter implements Processor
var _ Processor = (*StripeAdapter)(nil)
