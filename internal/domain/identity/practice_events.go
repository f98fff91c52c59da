package identity

import (
	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// PracticeCreatedEvent is raised when a new practice is created
type PracticeCreatedEvent struct {
	shared.BaseDomainEvent
	PracticeIDField uuid.UUID      `json:"practice_id"`
	Code            string         `json:"code"`
	Name            string         `json:"name"`
	Status          PracticeStatus `json:"status"`
}

// EventType returns the event type name
func (e *PracticeCreatedEvent) EventType() string {
	return "PracticeCreated"
}

// NewPracticeCreatedEvent creates a new PracticeCreatedEvent
func NewPracticeCreatedEvent(p *Practice) *PracticeCreatedEvent {
	return &PracticeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PracticeCreated", "Practice", p.ID, p.ID),
		PracticeIDField: p.ID,
		Code:            p.Code,
		Name:            p.Name,
		Status:          p.Status,
	}
}

// PracticeStatusChangedEvent is raised when the practice status changes
type PracticeStatusChangedEvent struct {
	shared.BaseDomainEvent
	PracticeIDField uuid.UUID      `json:"practice_id"`
	Status          PracticeStatus `json:"status"`
}

// EventType returns the event type name
func (e *PracticeStatusChangedEvent) EventType() string {
	return "PracticeStatusChanged"
}

// NewPracticeStatusChangedEvent creates a new PracticeStatusChangedEvent
func NewPracticeStatusChangedEvent(p *Practice) *PracticeStatusChangedEvent {
	return &PracticeStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PracticeStatusChanged", "Practice", p.ID, p.ID),
		PracticeIDField: p.ID,
		Status:          p.Status,
	}
}

// PracticeStripeAccountSyncedEvent is raised when connected account
// capabilities are reconciled from Stripe
type PracticeStripeAccountSyncedEvent struct {
	shared.BaseDomainEvent
	PracticeIDField uuid.UUID `json:"practice_id"`
	StripeAccountID string    `json:"stripe_account_id"`
	ChargesEnabled  bool      `json:"charges_enabled"`
	PayoutsEnabled  bool      `json:"payouts_enabled"`
}

// EventType returns the event type name
func (e *PracticeStripeAccountSyncedEvent) EventType() string {
	return "PracticeStripeAccountSynced"
}

// NewPracticeStripeAccountSyncedEvent creates a new PracticeStripeAccountSyncedEvent
func NewPracticeStripeAccountSyncedEvent(p *Practice) *PracticeStripeAccountSyncedEvent {
	return &PracticeStripeAccountSyncedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PracticeStripeAccountSynced", "Practice", p.ID, p.ID),
		PracticeIDField: p.ID,
		StripeAccountID: p.StripeAccountID,
		ChargesEnabled:  p.ChargesEnabled,
		PayoutsEnabled:  p.PayoutsEnabled,
	}
}
