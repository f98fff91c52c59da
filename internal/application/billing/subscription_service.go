package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"go.uber.org/zap"
)

// SubscriptionService manages a practice's platform subscription. Stripe
// owns the billing lifecycle; this service initiates changes through the
// payment processor and records the confirmed outcome locally. Webhooks
// carry later state changes back in through StripeWebhookService.
type SubscriptionService struct {
	subscriptionRepo domainbilling.SubscriptionRepository
	practiceRepo     identity.PracticeRepository
	processor        infrabilling.Processor
	config           *infrabilling.StripeConfig
	eventBus         shared.EventBus
	logger           *zap.Logger
}

// SubscriptionServiceConfig contains the dependencies for SubscriptionService
type SubscriptionServiceConfig struct {
	SubscriptionRepo domainbilling.SubscriptionRepository
	PracticeRepo     identity.PracticeRepository
	Processor        infrabilling.Processor
	Config           *infrabilling.StripeConfig
	EventBus         shared.EventBus
	Logger           *zap.Logger
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(cfg SubscriptionServiceConfig) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: cfg.SubscriptionRepo,
		practiceRepo:     cfg.PracticeRepo,
		processor:        cfg.Processor,
		config:           cfg.Config,
		eventBus:         cfg.EventBus,
		logger:           cfg.Logger,
	}
}

// SubscribeInput carries the fields to start or upgrade a subscription
type SubscribeInput struct {
	Plan            domainbilling.SubscriptionPlan `json:"plan" binding:"required"`
	Email           string                         `json:"email"`
	PaymentMethodID string                         `json:"payment_method_id"`
}

// ChangePlanInput carries a plan change request
type ChangePlanInput struct {
	Plan              domainbilling.SubscriptionPlan `json:"plan" binding:"required"`
	ProrationBehavior string                         `json:"proration_behavior"`
}

// CancelInput carries a cancellation request
type CancelInput struct {
	AtPeriodEnd bool   `json:"at_period_end"`
	Reason      string `json:"reason"`
}

// SubscriptionResponse represents a subscription in API responses
type SubscriptionResponse struct {
	ID                   uuid.UUID  `json:"id"`
	PracticeID           uuid.UUID  `json:"practice_id"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	StripePriceID        string     `json:"stripe_price_id,omitempty"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	TrialEndsAt          *time.Time `json:"trial_ends_at,omitempty"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
	LastSyncedAt         *time.Time `json:"last_synced_at,omitempty"`

	// ClientSecret is returned when the new subscription requires a
	// payment confirmation step on the client
	ClientSecret string `json:"client_secret,omitempty"`
}

// Subscribe starts a paid subscription for a practice, creating the Stripe
// customer on first use. Nothing is persisted until Stripe confirms the
// subscription, so a processor failure leaves local state untouched.
func (s *SubscriptionService) Subscribe(ctx context.Context, practiceID uuid.UUID, input SubscribeInput) (*SubscriptionResponse, error) {
	if !input.Plan.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Subscription plan is not valid")
	}

	practice, err := s.practiceRepo.FindByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Practice not found")
		}
		return nil, err
	}

	sub, err := s.findOrCreateSubscription(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID != "" && sub.Status != domainbilling.SubscriptionStatusCanceled {
		return nil, shared.NewDomainError("ALREADY_SUBSCRIBED", "Practice already has an active subscription; use plan change instead")
	}

	priceID, err := s.config.PriceIDForPlan(input.Plan)
	if err != nil {
		return nil, err
	}

	customerID := practice.StripeCustomerID
	if customerID == "" && input.Plan != domainbilling.SubscriptionPlanFree {
		email := input.Email
		if email == "" {
			email = practice.ContactEmail
		}
		customer, err := s.processor.CreateCustomer(ctx, infrabilling.CreateCustomerInput{
			PracticeID:  practiceID,
			Email:       email,
			Name:        practice.Name,
			Description: fmt.Sprintf("Practice %s", practice.Code),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Stripe customer: %w", err)
		}
		customerID = customer.CustomerID

		if err := practice.LinkStripeCustomer(customerID); err != nil {
			return nil, err
		}
		if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
			return nil, fmt.Errorf("failed to save practice: %w", err)
		}
	}

	output, err := s.processor.CreateSubscription(ctx, infrabilling.CreateSubscriptionInput{
		PracticeID:      practiceID,
		CustomerID:      customerID,
		Plan:            input.Plan,
		PriceID:         priceID,
		PaymentMethodID: input.PaymentMethodID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	if output.SubscriptionID != "" {
		if err := sub.LinkStripe(customerID, output.SubscriptionID, output.PriceID); err != nil {
			return nil, err
		}
	}
	// Sync first: a re-subscribe after cancellation must leave the
	// canceled status before the plan change is accepted
	if _, err := sub.SyncFromStripe(output.Snapshot()); err != nil {
		return nil, err
	}
	if err := sub.ChangePlan(input.Plan, output.PriceID); err != nil {
		return nil, err
	}

	if err := s.subscriptionRepo.SaveWithLock(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.flushSubscriptionEvents(ctx, sub)

	s.logger.Info("Subscription started",
		zap.String("practice_id", practiceID.String()),
		zap.String("plan", string(input.Plan)),
		zap.String("stripe_subscription_id", output.SubscriptionID))

	resp := toSubscriptionResponse(sub)
	resp.ClientSecret = output.ClientSecret
	return resp, nil
}

// ChangePlan upgrades or downgrades the practice's subscription through
// Stripe with proration
func (s *SubscriptionService) ChangePlan(ctx context.Context, practiceID uuid.UUID, input ChangePlanInput) (*SubscriptionResponse, error) {
	if !input.Plan.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Subscription plan is not valid")
	}

	sub, err := s.loadSubscription(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, shared.NewDomainError("NOT_SUBSCRIBED", "Practice has no Stripe subscription; subscribe first")
	}
	if sub.Plan == input.Plan {
		return toSubscriptionResponse(sub), nil
	}

	priceID, err := s.config.PriceIDForPlan(input.Plan)
	if err != nil {
		return nil, err
	}

	output, err := s.processor.UpdateSubscriptionPlan(ctx, infrabilling.UpdateSubscriptionInput{
		PracticeID:        practiceID,
		SubscriptionID:    sub.StripeSubscriptionID,
		NewPlan:           input.Plan,
		NewPriceID:        priceID,
		ProrationBehavior: input.ProrationBehavior,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := sub.ChangePlan(input.Plan, output.PriceID); err != nil {
		return nil, err
	}
	if _, err := sub.SyncFromStripe(output.Snapshot()); err != nil {
		return nil, err
	}

	if err := s.subscriptionRepo.SaveWithLock(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.flushSubscriptionEvents(ctx, sub)

	s.logger.Info("Subscription plan changed",
		zap.String("practice_id", practiceID.String()),
		zap.String("plan", string(input.Plan)))

	return toSubscriptionResponse(sub), nil
}

// Cancel cancels the subscription, either at period end (default Stripe
// retention behavior) or immediately
func (s *SubscriptionService) Cancel(ctx context.Context, practiceID uuid.UUID, input CancelInput) (*SubscriptionResponse, error) {
	sub, err := s.loadSubscription(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, shared.NewDomainError("NOT_SUBSCRIBED", "Practice has no Stripe subscription")
	}
	if sub.Status == domainbilling.SubscriptionStatusCanceled {
		return toSubscriptionResponse(sub), nil
	}

	output, err := s.processor.CancelSubscription(ctx, infrabilling.CancelSubscriptionInput{
		PracticeID:     practiceID,
		SubscriptionID: sub.StripeSubscriptionID,
		AtPeriodEnd:    input.AtPeriodEnd,
		Reason:         input.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	if input.AtPeriodEnd {
		if _, err := sub.SyncFromStripe(output.Snapshot()); err != nil {
			return nil, err
		}
	} else {
		sub.MarkCanceled()
	}

	if err := s.subscriptionRepo.SaveWithLock(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.flushSubscriptionEvents(ctx, sub)

	s.logger.Info("Subscription canceled",
		zap.String("practice_id", practiceID.String()),
		zap.Bool("at_period_end", input.AtPeriodEnd))

	return toSubscriptionResponse(sub), nil
}

// Resume reverses a pending at-period-end cancellation
func (s *SubscriptionService) Resume(ctx context.Context, practiceID uuid.UUID) (*SubscriptionResponse, error) {
	sub, err := s.loadSubscription(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, shared.NewDomainError("NOT_SUBSCRIBED", "Practice has no Stripe subscription")
	}
	if !sub.CancelAtPeriodEnd {
		return toSubscriptionResponse(sub), nil
	}

	output, err := s.processor.ResumeSubscription(ctx, practiceID, sub.StripeSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume subscription: %w", err)
	}

	if _, err := sub.SyncFromStripe(output.Snapshot()); err != nil {
		return nil, err
	}

	if err := s.subscriptionRepo.SaveWithLock(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.flushSubscriptionEvents(ctx, sub)

	return toSubscriptionResponse(sub), nil
}

// GetForPractice returns the practice's subscription, creating the default
// free record on first access
func (s *SubscriptionService) GetForPractice(ctx context.Context, practiceID uuid.UUID) (*SubscriptionResponse, error) {
	sub, err := s.findOrCreateSubscription(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	return toSubscriptionResponse(sub), nil
}

// RefreshFromStripe pulls the current subscription state from Stripe and
// reconciles it locally. Used as a safety net when webhooks were missed.
func (s *SubscriptionService) RefreshFromStripe(ctx context.Context, practiceID uuid.UUID) (*SubscriptionResponse, error) {
	sub, err := s.loadSubscription(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return toSubscriptionResponse(sub), nil
	}

	output, err := s.processor.GetSubscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	changed, err := sub.SyncFromStripe(output.Snapshot())
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.subscriptionRepo.SaveWithLock(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to save subscription: %w", err)
		}
		s.flushSubscriptionEvents(ctx, sub)
	}

	return toSubscriptionResponse(sub), nil
}

// findOrCreateSubscription loads the practice's subscription record,
// creating the default free-plan record when none exists yet
func (s *SubscriptionService) findOrCreateSubscription(ctx context.Context, practiceID uuid.UUID) (*domainbilling.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByPracticeID(ctx, practiceID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	sub, err = domainbilling.NewSubscription(practiceID, domainbilling.SubscriptionPlanFree)
	if err != nil {
		return nil, err
	}
	if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.flushSubscriptionEvents(ctx, sub)

	return sub, nil
}

// loadSubscription fetches a practice's subscription, normalizing not-found
func (s *SubscriptionService) loadSubscription(ctx context.Context, practiceID uuid.UUID) (*domainbilling.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByPracticeID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Subscription not found")
		}
		return nil, err
	}
	return sub, nil
}

// flushSubscriptionEvents publishes and clears pending domain events
func (s *SubscriptionService) flushSubscriptionEvents(ctx context.Context, sub *domainbilling.Subscription) {
	events := sub.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	sub.ClearDomainEvents()
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish subscription events", zap.Error(err))
	}
}

// toSubscriptionResponse converts a subscription aggregate to its API shape
func toSubscriptionResponse(sub *domainbilling.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:                   sub.ID,
		PracticeID:           sub.PracticeID,
		Plan:                 string(sub.Plan),
		Status:               string(sub.Status),
		StripeSubscriptionID: sub.StripeSubscriptionID,
		StripePriceID:        sub.StripePriceID,
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		TrialEndsAt:          sub.TrialEndsAt,
		CanceledAt:           sub.CanceledAt,
		LastSyncedAt:         sub.LastSyncedAt,
	}
}
