package matter

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// MatterCreatedEvent is raised when a new matter enters intake
type MatterCreatedEvent struct {
	shared.BaseDomainEvent
	MatterID     uuid.UUID  `json:"matter_id"`
	MatterNumber string     `json:"matter_number"`
	Title        string     `json:"title"`
	Type         MatterType `json:"type"`
	ClientID     uuid.UUID  `json:"client_id"`
	ClientName   string     `json:"client_name"`
}

// EventType returns the event type name
func (e *MatterCreatedEvent) EventType() string {
	return "MatterCreated"
}

// NewMatterCreatedEvent creates a new MatterCreatedEvent
func NewMatterCreatedEvent(m *Matter) *MatterCreatedEvent {
	return &MatterCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterCreated", "Matter", m.ID, m.PracticeID),
		MatterID:        m.ID,
		MatterNumber:    m.MatterNumber,
		Title:           m.Title,
		Type:            m.Type,
		ClientID:        m.ClientID,
		ClientName:      m.ClientName,
	}
}

// MatterOpenedEvent is raised when a matter moves from intake to active
type MatterOpenedEvent struct {
	shared.BaseDomainEvent
	MatterID     uuid.UUID  `json:"matter_id"`
	MatterNumber string     `json:"matter_number"`
	MediatorID   *uuid.UUID `json:"mediator_id,omitempty"`
}

// EventType returns the event type name
func (e *MatterOpenedEvent) EventType() string {
	return "MatterOpened"
}

// NewMatterOpenedEvent creates a new MatterOpenedEvent
func NewMatterOpenedEvent(m *Matter) *MatterOpenedEvent {
	return &MatterOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterOpened", "Matter", m.ID, m.PracticeID),
		MatterID:        m.ID,
		MatterNumber:    m.MatterNumber,
		MediatorID:      m.MediatorID,
	}
}

// MatterSessionScheduledEvent is raised when a session is scheduled
type MatterSessionScheduledEvent struct {
	shared.BaseDomainEvent
	MatterID     uuid.UUID `json:"matter_id"`
	MatterNumber string    `json:"matter_number"`
	SessionID    uuid.UUID `json:"session_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	DurationMin  int       `json:"duration_min"`
}

// EventType returns the event type name
func (e *MatterSessionScheduledEvent) EventType() string {
	return "MatterSessionScheduled"
}

// NewMatterSessionScheduledEvent creates a new MatterSessionScheduledEvent
func NewMatterSessionScheduledEvent(m *Matter, session *SessionRecord) *MatterSessionScheduledEvent {
	return &MatterSessionScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterSessionScheduled", "Matter", m.ID, m.PracticeID),
		MatterID:        m.ID,
		MatterNumber:    m.MatterNumber,
		SessionID:       session.ID,
		ScheduledAt:     session.ScheduledAt,
		DurationMin:     session.DurationMin,
	}
}

// MatterResolvedEvent is raised when a matter reaches a terminal state
type MatterResolvedEvent struct {
	shared.BaseDomainEvent
	MatterID     uuid.UUID    `json:"matter_id"`
	MatterNumber string       `json:"matter_number"`
	Status       MatterStatus `json:"status"`
	ClientID     uuid.UUID    `json:"client_id"`
	ClientName   string       `json:"client_name"`
	MediatorID   *uuid.UUID   `json:"mediator_id,omitempty"`
}

// EventType returns the event type name
func (e *MatterResolvedEvent) EventType() string {
	return "MatterResolved"
}

// NewMatterResolvedEvent creates a new MatterResolvedEvent
func NewMatterResolvedEvent(m *Matter) *MatterResolvedEvent {
	return &MatterResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MatterResolved", "Matter", m.ID, m.PracticeID),
		MatterID:        m.ID,
		MatterNumber:    m.MatterNumber,
		Status:          m.Status,
		ClientID:        m.ClientID,
		ClientName:      m.ClientName,
		MediatorID:      m.MediatorID,
	}
}
