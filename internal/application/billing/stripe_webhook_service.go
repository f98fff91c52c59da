package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeWebhookService reconciles Stripe webhook events against local
// billing state. Stripe is the source of truth for subscription status and
// payment outcomes; this service applies what Stripe reports onto the
// Invoice, Subscription and Practice aggregates.
type StripeWebhookService struct {
	config           *infrabilling.StripeConfig
	invoiceRepo      domainbilling.InvoiceRepository
	subscriptionRepo domainbilling.SubscriptionRepository
	practiceRepo     identity.PracticeRepository
	idempotency      shared.IdempotencyStore
	idempotencyTTL   time.Duration
	eventBus         shared.EventBus
	logger           *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	Config           *infrabilling.StripeConfig
	InvoiceRepo      domainbilling.InvoiceRepository
	SubscriptionRepo domainbilling.SubscriptionRepository
	PracticeRepo     identity.PracticeRepository
	Idempotency      shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	EventBus         shared.EventBus
	Logger           *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &StripeWebhookService{
		config:           cfg.Config,
		invoiceRepo:      cfg.InvoiceRepo,
		subscriptionRepo: cfg.SubscriptionRepo,
		practiceRepo:     cfg.PracticeRepo,
		idempotency:      cfg.Idempotency,
		idempotencyTTL:   ttl,
		eventBus:         cfg.EventBus,
		logger:           cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and processes a Stripe webhook event.
// A signature failure is returned as an error so the caller can respond 401.
// Events referencing records we do not know are acknowledged without error:
// Stripe must not retry deliveries we can never act on.
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature",
			zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	if s.isDuplicate(ctx, event.ID) {
		result.Processed = false
		result.Message = "Event already processed"
		return result, nil
	}

	switch event.Type {
	case "customer.subscription.created":
		err = s.handleSubscriptionEvent(ctx, event, "subscription_created")
	case "customer.subscription.updated":
		err = s.handleSubscriptionEvent(ctx, event, "subscription_updated")
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoicePaymentFailed(ctx, event)
	case "invoice.voided":
		err = s.handleInvoiceVoided(ctx, event)
	case "invoice.marked_uncollectible":
		err = s.handleInvoiceUncollectible(ctx, event)
	case "payment_intent.succeeded":
		err = s.handlePaymentIntentSucceeded(ctx, event)
	case "payment_intent.payment_failed":
		err = s.handlePaymentIntentFailed(ctx, event)
	case "account.updated":
		err = s.handleAccountUpdated(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	s.markProcessed(ctx, event.ID)

	return result, nil
}

// isDuplicate reports whether the event ID has already been processed.
// Store failures are treated as "not a duplicate": the aggregates dedupe
// payments by reference, so reprocessing is safe while dropping is not.
func (s *StripeWebhookService) isDuplicate(ctx context.Context, eventID string) bool {
	if s.idempotency == nil {
		return false
	}
	processed, err := s.idempotency.IsProcessed(ctx, eventID)
	if err != nil {
		s.logger.Warn("Idempotency check failed, processing anyway",
			zap.String("event_id", eventID),
			zap.Error(err))
		return false
	}
	if processed {
		s.logger.Info("Skipping already-processed webhook event",
			zap.String("event_id", eventID))
	}
	return processed
}

// markProcessed records the event ID after successful handling. Marking
// only on success leaves room for Stripe's retries after transient failures.
func (s *StripeWebhookService) markProcessed(ctx context.Context, eventID string) {
	if s.idempotency == nil {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, eventID, s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to mark webhook event as processed",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// handleSubscriptionEvent handles customer.subscription.created and
// customer.subscription.updated events by syncing the full Stripe snapshot
// onto the local subscription.
func (s *StripeWebhookService) handleSubscriptionEvent(ctx context.Context, event stripe.Event, action string) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	s.logger.Info("Handling subscription event",
		zap.String("action", action),
		zap.String("subscription_id", stripeSub.ID),
		zap.String("status", string(stripeSub.Status)))

	sub, err := s.findSubscription(ctx, &stripeSub)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Subscription not found for Stripe subscription",
			zap.String("subscription_id", stripeSub.ID))
		return nil
	}

	// A subscription created out-of-band (Stripe dashboard, recovered
	// checkout) may not carry our linkage yet.
	if sub.StripeSubscriptionID == "" {
		customerID := stripeCustomerID(stripeSub.Customer)
		if err := sub.LinkStripe(customerID, stripeSub.ID, stripePriceID(&stripeSub)); err != nil {
			s.logger.Warn("Failed to link Stripe subscription",
				zap.String("subscription_id", stripeSub.ID),
				zap.Error(err))
		}
	}

	if _, err := sub.SyncFromStripe(syncSnapshotFrom(&stripeSub)); err != nil {
		return fmt.Errorf("failed to sync subscription: %w", err)
	}

	// Keep the local plan aligned with the price Stripe is billing
	if priceID := stripePriceID(&stripeSub); priceID != "" {
		if plan, ok := s.config.PlanForPriceID(priceID); ok && plan != sub.Plan {
			if err := sub.ChangePlan(plan, priceID); err != nil {
				s.logger.Warn("Failed to change subscription plan",
					zap.String("price_id", priceID),
					zap.Error(err))
			}
		}
	}

	if err := s.saveSubscription(ctx, sub); err != nil {
		return err
	}

	if err := s.reconcilePracticeAccess(ctx, sub.PracticeID, sub.Status); err != nil {
		return err
	}

	s.publishSubscriptionEvent(ctx, sub.PracticeID, action, stripeSub.ID)

	s.logger.Info("Subscription event processed",
		zap.String("practice_id", sub.PracticeID.String()),
		zap.String("subscription_id", stripeSub.ID),
		zap.String("status", string(sub.Status)))

	return nil
}

// handleSubscriptionDeleted handles customer.subscription.deleted events.
// The local subscription is canceled and the practice drops to the free plan.
func (s *StripeWebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	s.logger.Info("Handling subscription deleted",
		zap.String("subscription_id", stripeSub.ID))

	sub, err := s.findSubscription(ctx, &stripeSub)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Subscription not found for Stripe subscription",
			zap.String("subscription_id", stripeSub.ID))
		return nil
	}

	sub.MarkCanceled()
	if err := sub.ChangePlan(domainbilling.SubscriptionPlanFree, ""); err != nil {
		// ChangePlan refuses on a canceled subscription; the downgrade is
		// informational only at this point.
		s.logger.Debug("Plan left unchanged on canceled subscription",
			zap.String("subscription_id", stripeSub.ID))
	}

	if err := s.saveSubscription(ctx, sub); err != nil {
		return err
	}

	s.publishSubscriptionEvent(ctx, sub.PracticeID, "subscription_deleted", stripeSub.ID)

	s.logger.Info("Subscription deleted processed",
		zap.String("practice_id", sub.PracticeID.String()),
		zap.String("subscription_id", stripeSub.ID))

	return nil
}

// handleInvoicePaid handles invoice.paid events. If the Stripe invoice maps
// to a local invoice, the payment is applied there; subscription invoices
// additionally reactivate a suspended practice.
func (s *StripeWebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	var stripeInv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &stripeInv); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	s.logger.Info("Handling invoice paid",
		zap.String("stripe_invoice_id", stripeInv.ID))

	inv, err := s.invoiceRepo.FindByStripeInvoiceID(ctx, stripeInv.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("failed to find invoice: %w", err)
	}

	if inv != nil && !inv.IsPaid() {
		reference := paymentReference(&stripeInv)
		amount := valueobject.NewMoneyFromCents(stripeInv.AmountPaid, inv.Currency)
		if err := inv.ApplyPayment(amount, domainbilling.PaymentSourceStripe, reference, "Stripe invoice payment"); err != nil {
			return fmt.Errorf("failed to apply payment: %w", err)
		}
		if err := s.saveInvoice(ctx, inv); err != nil {
			return err
		}
		s.publishPaymentEvent(ctx, inv.PracticeID, "invoice_paid", stripeInv.ID)
	}

	// A paid subscription invoice means the practice is in good standing
	if stripeInv.Subscription != nil {
		customerID := stripeCustomerID(stripeInv.Customer)
		if customerID != "" {
			if err := s.reactivatePracticeByCustomer(ctx, customerID); err != nil {
				return err
			}
		}
	}

	if inv == nil && stripeInv.Subscription == nil {
		s.logger.Warn("No local invoice for Stripe invoice",
			zap.String("stripe_invoice_id", stripeInv.ID))
	}

	return nil
}

// handleInvoicePaymentFailed handles invoice.payment_failed events. The
// local invoice is not mutated; the failure is published so staff can
// follow up. Subscription delinquency is driven by subscription.updated.
func (s *StripeWebhookService) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var stripeInv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &stripeInv); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	s.logger.Warn("Handling invoice payment failed",
		zap.String("stripe_invoice_id", stripeInv.ID))

	inv, err := s.invoiceRepo.FindByStripeInvoiceID(ctx, stripeInv.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No local invoice for failed Stripe invoice",
				zap.String("stripe_invoice_id", stripeInv.ID))
			return nil
		}
		return fmt.Errorf("failed to find invoice: %w", err)
	}

	paymentIntentID := ""
	if stripeInv.PaymentIntent != nil {
		paymentIntentID = stripeInv.PaymentIntent.ID
	}
	attempted := valueobject.NewMoneyFromCents(stripeInv.AmountDue, inv.Currency)
	failedEvent := domainbilling.NewInvoicePaymentFailedEvent(inv, paymentIntentID, "Stripe invoice payment failed", attempted.Amount())
	s.publishEvent(ctx, failedEvent)
	s.publishPaymentEvent(ctx, inv.PracticeID, "payment_failed", stripeInv.ID)

	return nil
}

// handleInvoiceVoided handles invoice.voided events
func (s *StripeWebhookService) handleInvoiceVoided(ctx context.Context, event stripe.Event) error {
	var stripeInv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &stripeInv); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	inv, err := s.invoiceRepo.FindByStripeInvoiceID(ctx, stripeInv.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No local invoice for voided Stripe invoice",
				zap.String("stripe_invoice_id", stripeInv.ID))
			return nil
		}
		return fmt.Errorf("failed to find invoice: %w", err)
	}

	if inv.IsVoid() {
		return nil
	}
	if err := inv.Void("Voided in Stripe"); err != nil {
		return fmt.Errorf("failed to void invoice: %w", err)
	}

	return s.saveInvoice(ctx, inv)
}

// handleInvoiceUncollectible handles invoice.marked_uncollectible events
func (s *StripeWebhookService) handleInvoiceUncollectible(ctx context.Context, event stripe.Event) error {
	var stripeInv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &stripeInv); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	inv, err := s.invoiceRepo.FindByStripeInvoiceID(ctx, stripeInv.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No local invoice for uncollectible Stripe invoice",
				zap.String("stripe_invoice_id", stripeInv.ID))
			return nil
		}
		return fmt.Errorf("failed to find invoice: %w", err)
	}

	if inv.Status == domainbilling.InvoiceStatusUncollectible {
		return nil
	}
	if err := inv.MarkUncollectible("Marked uncollectible in Stripe"); err != nil {
		return fmt.Errorf("failed to write off invoice: %w", err)
	}

	return s.saveInvoice(ctx, inv)
}

// handlePaymentIntentSucceeded handles payment_intent.succeeded events by
// applying the payment to the linked invoice. The payment intent ID is used
// as the payment reference, so redelivered events are no-ops.
func (s *StripeWebhookService) handlePaymentIntentSucceeded(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	s.logger.Info("Handling payment intent succeeded",
		zap.String("payment_intent_id", intent.ID))

	inv, err := s.invoiceRepo.FindByStripePaymentIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No local invoice for payment intent",
				zap.String("payment_intent_id", intent.ID))
			return nil
		}
		return fmt.Errorf("failed to find invoice: %w", err)
	}

	// A redelivered success for an already-recorded payment is a no-op
	if inv.HasPaymentReference(intent.ID) {
		s.logger.Info("Payment already recorded for payment intent",
			zap.String("payment_intent_id", intent.ID),
			zap.String("invoice_number", inv.InvoiceNumber))
		return nil
	}

	received := intent.AmountReceived
	if received <= 0 {
		received = intent.Amount
	}
	amount := valueobject.NewMoneyFromCents(received, inv.Currency)

	if err := inv.ApplyPayment(amount, domainbilling.PaymentSourceStripe, intent.ID, "Stripe payment"); err != nil {
		return fmt.Errorf("failed to apply payment: %w", err)
	}

	if err := s.saveInvoice(ctx, inv); err != nil {
		return err
	}

	s.publishPaymentEvent(ctx, inv.PracticeID, "invoice_paid", intent.ID)

	s.logger.Info("Payment applied to invoice",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", string(inv.Status)))

	return nil
}

// handlePaymentIntentFailed handles payment_intent.payment_failed events.
// The invoice keeps its status; only a failure event is published.
func (s *StripeWebhookService) handlePaymentIntentFailed(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	s.logger.Warn("Handling payment intent failed",
		zap.String("payment_intent_id", intent.ID))

	inv, err := s.invoiceRepo.FindByStripePaymentIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No local invoice for failed payment intent",
				zap.String("payment_intent_id", intent.ID))
			return nil
		}
		return fmt.Errorf("failed to find invoice: %w", err)
	}

	failureMessage := "Payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		failureMessage = intent.LastPaymentError.Msg
	}
	attempted := valueobject.NewMoneyFromCents(intent.Amount, inv.Currency)

	failedEvent := domainbilling.NewInvoicePaymentFailedEvent(inv, intent.ID, failureMessage, attempted.Amount())
	s.publishEvent(ctx, failedEvent)
	s.publishPaymentEvent(ctx, inv.PracticeID, "payment_failed", intent.ID)

	return nil
}

// handleAccountUpdated handles account.updated events for connected
// accounts, mirroring charge/payout capabilities onto the practice.
func (s *StripeWebhookService) handleAccountUpdated(ctx context.Context, event stripe.Event) error {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return fmt.Errorf("failed to unmarshal account: %w", err)
	}

	practice, err := s.practiceRepo.FindByStripeAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No practice for Stripe account",
				zap.String("account_id", account.ID))
			return nil
		}
		return fmt.Errorf("failed to find practice: %w", err)
	}

	if !practice.SyncStripeAccountCapabilities(account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted) {
		return nil
	}

	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return fmt.Errorf("failed to save practice: %w", err)
	}

	s.publishEvent(ctx, NewStripeAccountEvent(practice.ID, account.ID, account.ChargesEnabled, account.PayoutsEnabled))

	s.logger.Info("Practice account capabilities updated",
		zap.String("practice_id", practice.ID.String()),
		zap.Bool("charges_enabled", account.ChargesEnabled),
		zap.Bool("payouts_enabled", account.PayoutsEnabled))

	return nil
}

// findSubscription locates the local subscription for a Stripe subscription,
// falling back to the customer linkage when the subscription ID is unknown.
// Returns (nil, nil) when no match exists.
func (s *StripeWebhookService) findSubscription(ctx context.Context, stripeSub *stripe.Subscription) (*domainbilling.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByStripeSubscriptionID(ctx, stripeSub.ID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	customerID := stripeCustomerID(stripeSub.Customer)
	if customerID == "" {
		return nil, nil
	}

	sub, err = s.subscriptionRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// reconcilePracticeAccess aligns the practice status with the subscription
// status: delinquent-beyond-grace suspends, anything granting access
// reactivates a suspended practice.
func (s *StripeWebhookService) reconcilePracticeAccess(ctx context.Context, practiceID uuid.UUID, status domainbilling.SubscriptionStatus) error {
	practice, err := s.practiceRepo.FindByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Practice not found for subscription",
				zap.String("practice_id", practiceID.String()))
			return nil
		}
		return fmt.Errorf("failed to find practice: %w", err)
	}

	changed := false
	switch {
	case status == domainbilling.SubscriptionStatusUnpaid:
		if practice.Status != identity.PracticeStatusSuspended {
			if err := practice.Suspend("Subscription unpaid"); err != nil {
				s.logger.Warn("Failed to suspend practice", zap.Error(err))
			} else {
				changed = true
			}
		}
	case status.GrantsAccess():
		if practice.Status == identity.PracticeStatusSuspended {
			if err := practice.Activate(); err != nil {
				s.logger.Warn("Failed to activate practice", zap.Error(err))
			} else {
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}

	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return fmt.Errorf("failed to save practice: %w", err)
	}
	s.publishAggregateEvents(ctx, practice)

	return nil
}

// reactivatePracticeByCustomer brings a suspended practice back after a
// successful subscription payment
func (s *StripeWebhookService) reactivatePracticeByCustomer(ctx context.Context, customerID string) error {
	practice, err := s.practiceRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Practice not found for Stripe customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find practice: %w", err)
	}

	if practice.Status != identity.PracticeStatusSuspended {
		return nil
	}
	if err := practice.Activate(); err != nil {
		s.logger.Warn("Failed to activate practice after payment", zap.Error(err))
		return nil
	}
	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return fmt.Errorf("failed to save practice: %w", err)
	}
	s.publishAggregateEvents(ctx, practice)

	return nil
}

// saveInvoice persists the invoice and flushes its pending domain events
func (s *StripeWebhookService) saveInvoice(ctx context.Context, inv *domainbilling.Invoice) error {
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	s.publishAggregateEvents(ctx, inv)
	return nil
}

// saveSubscription persists the subscription and flushes its pending events
func (s *StripeWebhookService) saveSubscription(ctx context.Context, sub *domainbilling.Subscription) error {
	if err := s.subscriptionRepo.SaveWithLock(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	s.publishAggregateEvents(ctx, sub)
	return nil
}

func (s *StripeWebhookService) publishAggregateEvents(ctx context.Context, root shared.AggregateRoot) {
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	root.ClearDomainEvents()
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish domain events", zap.Error(err))
	}
}

func (s *StripeWebhookService) publishEvent(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

// publishSubscriptionEvent publishes a subscription reconciliation event
func (s *StripeWebhookService) publishSubscriptionEvent(ctx context.Context, practiceID uuid.UUID, action, subscriptionID string) {
	if s.eventBus == nil {
		return
	}
	event := NewStripeSubscriptionEvent(practiceID, action, subscriptionID)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish subscription event",
			zap.String("action", action),
			zap.Error(err))
	}
}

// publishPaymentEvent publishes a payment reconciliation event
func (s *StripeWebhookService) publishPaymentEvent(ctx context.Context, practiceID uuid.UUID, action, invoiceID string) {
	if s.eventBus == nil {
		return
	}
	event := NewStripePaymentEvent(practiceID, action, invoiceID)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("action", action),
			zap.Error(err))
	}
}

// stripeCustomerID extracts the customer ID, tolerating a nil expansion
func stripeCustomerID(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

// stripePriceID extracts the price from the first subscription item
func stripePriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	item := sub.Items.Data[0]
	if item.Price == nil {
		return ""
	}
	return item.Price.ID
}

// paymentReference picks the dedupe reference for an invoice payment:
// the payment intent when present, otherwise the Stripe invoice itself
func paymentReference(inv *stripe.Invoice) string {
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		return inv.PaymentIntent.ID
	}
	return "stripe_invoice:" + inv.ID
}

// syncSnapshotFrom converts a Stripe subscription into a sync snapshot
func syncSnapshotFrom(sub *stripe.Subscription) domainbilling.SyncSnapshot {
	return domainbilling.SyncSnapshot{
		Status:             infrabilling.MapStripeSubscriptionStatus(sub.Status),
		PriceID:            stripePriceID(sub),
		CurrentPeriodStart: unixTimePtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTimePtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		TrialEndsAt:        unixTimePtr(sub.TrialEnd),
		CanceledAt:         unixTimePtr(sub.CanceledAt),
	}
}

func unixTimePtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}
