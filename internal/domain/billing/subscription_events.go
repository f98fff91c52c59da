package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// SubscriptionCreatedEvent is raised when a practice's subscription record is created
type SubscriptionCreatedEvent struct {
	shared.BaseDomainEvent
	SubscriptionID uuid.UUID        `json:"subscription_id"`
	Plan           SubscriptionPlan `json:"plan"`
}

// EventType returns the event type name
func (e *SubscriptionCreatedEvent) EventType() string {
	return "SubscriptionCreated"
}

// NewSubscriptionCreatedEvent creates a new SubscriptionCreatedEvent
func NewSubscriptionCreatedEvent(s *Subscription) *SubscriptionCreatedEvent {
	return &SubscriptionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SubscriptionCreated", "Subscription", s.ID, s.PracticeID),
		SubscriptionID:  s.ID,
		Plan:            s.Plan,
	}
}

// SubscriptionStatusChangedEvent is raised when reconciliation moves the
// subscription to a different status
type SubscriptionStatusChangedEvent struct {
	shared.BaseDomainEvent
	SubscriptionID       uuid.UUID          `json:"subscription_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	PreviousStatus       SubscriptionStatus `json:"previous_status"`
	NewStatus            SubscriptionStatus `json:"new_status"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
}

// EventType returns the event type name
func (e *SubscriptionStatusChangedEvent) EventType() string {
	return "SubscriptionStatusChanged"
}

// NewSubscriptionStatusChangedEvent creates a new SubscriptionStatusChangedEvent
func NewSubscriptionStatusChangedEvent(s *Subscription, previous SubscriptionStatus) *SubscriptionStatusChangedEvent {
	return &SubscriptionStatusChangedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent("SubscriptionStatusChanged", "Subscription", s.ID, s.PracticeID),
		SubscriptionID:       s.ID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		PreviousStatus:       previous,
		NewStatus:            s.Status,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
	}
}

// SubscriptionPlanChangedEvent is raised when the practice moves to a different plan
type SubscriptionPlanChangedEvent struct {
	shared.BaseDomainEvent
	SubscriptionID uuid.UUID        `json:"subscription_id"`
	PreviousPlan   SubscriptionPlan `json:"previous_plan"`
	NewPlan        SubscriptionPlan `json:"new_plan"`
}

// EventType returns the event type name
func (e *SubscriptionPlanChangedEvent) EventType() string {
	return "SubscriptionPlanChanged"
}

// NewSubscriptionPlanChangedEvent creates a new SubscriptionPlanChangedEvent
func NewSubscriptionPlanChangedEvent(s *Subscription, previous SubscriptionPlan) *SubscriptionPlanChangedEvent {
	return &SubscriptionPlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SubscriptionPlanChanged", "Subscription", s.ID, s.PracticeID),
		SubscriptionID:  s.ID,
		PreviousPlan:    previous,
		NewPlan:         s.Plan,
	}
}
