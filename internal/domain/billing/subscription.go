package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle. Stripe is
// the source of truth; local status is reconciled from webhook events.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// IsValid checks if the status is a valid SubscriptionStatus
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue,
		SubscriptionStatusUnpaid, SubscriptionStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsDelinquent returns true if the subscription has unpaid charges
func (s SubscriptionStatus) IsDelinquent() bool {
	return s == SubscriptionStatusPastDue || s == SubscriptionStatusUnpaid
}

// GrantsAccess returns true if the practice should retain full access
// while the subscription is in this status
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == SubscriptionStatusTrialing || s == SubscriptionStatusActive || s == SubscriptionStatusPastDue
}

// SubscriptionPlan identifies the platform plan a practice subscribes to
type SubscriptionPlan string

const (
	SubscriptionPlanFree       SubscriptionPlan = "free"
	SubscriptionPlanSolo       SubscriptionPlan = "solo"
	SubscriptionPlanFirm       SubscriptionPlan = "firm"
	SubscriptionPlanEnterprise SubscriptionPlan = "enterprise"
)

// IsValid checks if the plan is valid
func (p SubscriptionPlan) IsValid() bool {
	switch p {
	case SubscriptionPlanFree, SubscriptionPlanSolo, SubscriptionPlanFirm, SubscriptionPlanEnterprise:
		return true
	}
	return false
}

// Subscription is the aggregate root holding a practice's platform
// subscription as last reconciled from Stripe.
type Subscription struct {
	shared.PracticeAggregateRoot
	Plan                 SubscriptionPlan   `json:"plan"`
	Status               SubscriptionStatus `json:"status"`
	StripeCustomerID     string             `json:"stripe_customer_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	StripePriceID        string             `json:"stripe_price_id"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	TrialEndsAt          *time.Time         `json:"trial_ends_at"`
	CanceledAt           *time.Time         `json:"canceled_at"`
	LastSyncedAt         *time.Time         `json:"last_synced_at"`
}

// NewSubscription creates a subscription record for a practice.
// New practices start on the free plan without any Stripe linkage;
// the linkage is set when they upgrade.
func NewSubscription(practiceID uuid.UUID, plan SubscriptionPlan) (*Subscription, error) {
	if practiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRACTICE", "Practice ID cannot be empty")
	}
	if !plan.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Subscription plan is not valid")
	}

	sub := &Subscription{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		Plan:                  plan,
		Status:                SubscriptionStatusActive,
	}

	sub.AddDomainEvent(NewSubscriptionCreatedEvent(sub))

	return sub, nil
}

// LinkStripe attaches Stripe identifiers after checkout completes
func (s *Subscription) LinkStripe(customerID, subscriptionID, priceID string) error {
	if customerID == "" || subscriptionID == "" {
		return shared.NewDomainError("INVALID_STRIPE_REF", "Stripe customer and subscription IDs are required")
	}

	s.StripeCustomerID = customerID
	s.StripeSubscriptionID = subscriptionID
	s.StripePriceID = priceID
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	return nil
}

// SyncSnapshot carries the Stripe-side state applied during reconciliation
type SyncSnapshot struct {
	Status             SubscriptionStatus
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	TrialEndsAt        *time.Time
	CanceledAt         *time.Time
}

// SyncFromStripe reconciles local state with a Stripe subscription snapshot.
// The whole snapshot is applied unconditionally: Stripe wins every
// disagreement. Returns true if anything changed.
func (s *Subscription) SyncFromStripe(snap SyncSnapshot) (bool, error) {
	if !snap.Status.IsValid() {
		return false, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown subscription status %q", snap.Status))
	}

	changed := s.Status != snap.Status ||
		s.CancelAtPeriodEnd != snap.CancelAtPeriodEnd ||
		(snap.PriceID != "" && s.StripePriceID != snap.PriceID)

	previousStatus := s.Status

	s.Status = snap.Status
	if snap.PriceID != "" {
		s.StripePriceID = snap.PriceID
	}
	s.CurrentPeriodStart = snap.CurrentPeriodStart
	s.CurrentPeriodEnd = snap.CurrentPeriodEnd
	s.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	s.TrialEndsAt = snap.TrialEndsAt
	s.CanceledAt = snap.CanceledAt

	now := time.Now()
	s.LastSyncedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	if previousStatus != snap.Status {
		s.AddDomainEvent(NewSubscriptionStatusChangedEvent(s, previousStatus))
	}

	return changed, nil
}

// ChangePlan records a plan change after Stripe confirms it
func (s *Subscription) ChangePlan(plan SubscriptionPlan, priceID string) error {
	if !plan.IsValid() {
		return shared.NewDomainError("INVALID_PLAN", "Subscription plan is not valid")
	}
	if s.Status == SubscriptionStatusCanceled {
		return shared.NewDomainError("INVALID_STATE", "Cannot change plan on a canceled subscription")
	}

	previousPlan := s.Plan
	s.Plan = plan
	s.StripePriceID = priceID
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	if previousPlan != plan {
		s.AddDomainEvent(NewSubscriptionPlanChangedEvent(s, previousPlan))
	}

	return nil
}

// MarkCanceled terminates the subscription locally. Used when Stripe
// reports customer.subscription.deleted.
func (s *Subscription) MarkCanceled() {
	if s.Status == SubscriptionStatusCanceled {
		return
	}

	now := time.Now()
	previousStatus := s.Status
	s.Status = SubscriptionStatusCanceled
	s.CanceledAt = &now
	s.LastSyncedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSubscriptionStatusChangedEvent(s, previousStatus))
}

// IsActive returns true if the subscription grants access
func (s *Subscription) IsActive() bool {
	return s.Status.GrantsAccess()
}

// IsInTrial returns true if the subscription is in its trial period
func (s *Subscription) IsInTrial() bool {
	return s.Status == SubscriptionStatusTrialing
}

// PeriodExpired returns true if the current billing period has ended
func (s *Subscription) PeriodExpired() bool {
	if s.CurrentPeriodEnd == nil {
		return false
	}
	return time.Now().After(*s.CurrentPeriodEnd)
}
