package matter

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// MatterStatus represents the lifecycle status of a mediation matter
type MatterStatus string

const (
	MatterStatusIntake  MatterStatus = "INTAKE"  // Parties onboarding, not yet in session
	MatterStatusActive  MatterStatus = "ACTIVE"  // Mediation underway
	MatterStatusSettled MatterStatus = "SETTLED" // Agreement reached
	MatterStatusImpasse MatterStatus = "IMPASSE" // Mediation ended without agreement
	MatterStatusClosed  MatterStatus = "CLOSED"  // Administratively closed
)

// IsValid checks if the status is a valid MatterStatus
func (s MatterStatus) IsValid() bool {
	switch s {
	case MatterStatusIntake, MatterStatusActive, MatterStatusSettled,
		MatterStatusImpasse, MatterStatusClosed:
		return true
	}
	return false
}

// String returns the string representation of MatterStatus
func (s MatterStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the matter is in a terminal state
func (s MatterStatus) IsTerminal() bool {
	return s == MatterStatusSettled || s == MatterStatusImpasse || s == MatterStatusClosed
}

// MatterType categorizes the dispute being mediated
type MatterType string

const (
	MatterTypeFamily     MatterType = "FAMILY"
	MatterTypeWorkplace  MatterType = "WORKPLACE"
	MatterTypeCommercial MatterType = "COMMERCIAL"
	MatterTypeCommunity  MatterType = "COMMUNITY"
	MatterTypeOther      MatterType = "OTHER"
)

// IsValid checks if the matter type is valid
func (t MatterType) IsValid() bool {
	switch t {
	case MatterTypeFamily, MatterTypeWorkplace, MatterTypeCommercial,
		MatterTypeCommunity, MatterTypeOther:
		return true
	}
	return false
}

// SessionRecord is a value object describing one mediation session,
// stored as JSONB within the Matter aggregate.
type SessionRecord struct {
	ID          uuid.UUID `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DurationMin int       `json:"duration_min"`
	Location    string    `json:"location"` // Physical address or video link
	Summary     string    `json:"summary,omitempty"`
	Held        bool      `json:"held"` // False until the session is confirmed held
}

// SessionRecords is a slice of SessionRecord that implements GORM Scanner/Valuer for JSONB storage
type SessionRecords []SessionRecord

// Value implements driver.Valuer interface for GORM to store as JSONB
func (s SessionRecords) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (s *SessionRecords) Scan(value interface{}) error {
	if value == nil {
		*s = SessionRecords{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan SessionRecords: unsupported type")
	}

	if len(bytes) == 0 {
		*s = SessionRecords{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Matter is the aggregate root for a mediation case. It tracks the parties,
// the assigned mediator and the case lifecycle from intake to resolution.
type Matter struct {
	shared.PracticeAggregateRoot
	MatterNumber  string         `json:"matter_number"`
	Title         string         `json:"title"`
	Type          MatterType     `json:"type"`
	Status        MatterStatus   `json:"status"`
	ClientID      uuid.UUID      `json:"client_id"`
	ClientName    string         `json:"client_name"`
	OpposingParty string         `json:"opposing_party"`
	MediatorID    *uuid.UUID     `json:"mediator_id"` // Assigned mediator (user)
	Sessions      SessionRecords `json:"sessions"`
	Description   string         `json:"description"`
	OpenedAt      *time.Time     `json:"opened_at"`
	ResolvedAt    *time.Time     `json:"resolved_at"`
	ClosedAt      *time.Time     `json:"closed_at"`
	CloseReason   string         `json:"close_reason"`
	OutcomeNotes  string         `json:"outcome_notes"`
}

// NewMatter creates a new matter in intake status
func NewMatter(
	practiceID uuid.UUID,
	matterNumber string,
	title string,
	matterType MatterType,
	clientID uuid.UUID,
	clientName string,
	opposingParty string,
) (*Matter, error) {
	if matterNumber == "" {
		return nil, shared.NewDomainError("INVALID_MATTER_NUMBER", "Matter number cannot be empty")
	}
	if strings.TrimSpace(title) == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Matter title cannot be empty")
	}
	if len(title) > 300 {
		return nil, shared.NewDomainError("INVALID_TITLE", "Matter title cannot exceed 300 characters")
	}
	if !matterType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MATTER_TYPE", "Matter type is not valid")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if clientName == "" {
		return nil, shared.NewDomainError("INVALID_CLIENT_NAME", "Client name cannot be empty")
	}

	m := &Matter{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		MatterNumber:          matterNumber,
		Title:                 strings.TrimSpace(title),
		Type:                  matterType,
		Status:                MatterStatusIntake,
		ClientID:              clientID,
		ClientName:            clientName,
		OpposingParty:         opposingParty,
		Sessions:              SessionRecords{},
	}

	m.AddDomainEvent(NewMatterCreatedEvent(m))

	return m, nil
}

// AssignMediator assigns a mediator to the matter
func (m *Matter) AssignMediator(mediatorID uuid.UUID) error {
	if m.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot assign mediator to a resolved matter")
	}
	if mediatorID == uuid.Nil {
		return shared.NewDomainError("INVALID_MEDIATOR", "Mediator ID cannot be empty")
	}

	m.MediatorID = &mediatorID
	m.UpdatedAt = time.Now()
	m.IncrementVersion()

	return nil
}

// Open moves the matter from intake to active. A mediator must be assigned.
func (m *Matter) Open() error {
	if m.Status != MatterStatusIntake {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot open matter in %s status", m.Status))
	}
	if m.MediatorID == nil {
		return shared.NewDomainError("NO_MEDIATOR", "Cannot open a matter without an assigned mediator")
	}

	now := time.Now()
	m.Status = MatterStatusActive
	m.OpenedAt = &now
	m.UpdatedAt = now
	m.IncrementVersion()

	m.AddDomainEvent(NewMatterOpenedEvent(m))

	return nil
}

// ScheduleSession adds a planned session to an active matter
func (m *Matter) ScheduleSession(scheduledAt time.Time, durationMin int, location string) (*SessionRecord, error) {
	if m.Status != MatterStatusActive {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot schedule sessions for matter in %s status", m.Status))
	}
	if scheduledAt.Before(time.Now()) {
		return nil, shared.NewDomainError("INVALID_SESSION_TIME", "Session time cannot be in the past")
	}
	if durationMin <= 0 {
		return nil, shared.NewDomainError("INVALID_SESSION_DURATION", "Session duration must be positive")
	}

	session := SessionRecord{
		ID:          uuid.New(),
		ScheduledAt: scheduledAt,
		DurationMin: durationMin,
		Location:    location,
	}
	m.Sessions = append(m.Sessions, session)
	m.UpdatedAt = time.Now()
	m.IncrementVersion()

	m.AddDomainEvent(NewMatterSessionScheduledEvent(m, &session))

	return &session, nil
}

// RecordSessionHeld marks a scheduled session as held and attaches a summary
func (m *Matter) RecordSessionHeld(sessionID uuid.UUID, summary string) error {
	for i := range m.Sessions {
		if m.Sessions[i].ID == sessionID {
			if m.Sessions[i].Held {
				return shared.NewDomainError("SESSION_ALREADY_HELD", "Session has already been recorded as held")
			}
			m.Sessions[i].Held = true
			m.Sessions[i].Summary = summary
			m.UpdatedAt = time.Now()
			m.IncrementVersion()
			return nil
		}
	}
	return shared.ErrNotFound
}

// Settle resolves the matter with an agreement
func (m *Matter) Settle(outcomeNotes string) error {
	if m.Status != MatterStatusActive {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot settle matter in %s status", m.Status))
	}

	now := time.Now()
	m.Status = MatterStatusSettled
	m.ResolvedAt = &now
	m.OutcomeNotes = outcomeNotes
	m.UpdatedAt = now
	m.IncrementVersion()

	m.AddDomainEvent(NewMatterResolvedEvent(m))

	return nil
}

// DeclareImpasse resolves the matter without an agreement
func (m *Matter) DeclareImpasse(outcomeNotes string) error {
	if m.Status != MatterStatusActive {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot declare impasse for matter in %s status", m.Status))
	}

	now := time.Now()
	m.Status = MatterStatusImpasse
	m.ResolvedAt = &now
	m.OutcomeNotes = outcomeNotes
	m.UpdatedAt = now
	m.IncrementVersion()

	m.AddDomainEvent(NewMatterResolvedEvent(m))

	return nil
}

// Close administratively closes the matter from any non-terminal state
func (m *Matter) Close(reason string) error {
	if m.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot close matter in %s status", m.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Close reason is required")
	}

	now := time.Now()
	m.Status = MatterStatusClosed
	m.ClosedAt = &now
	m.CloseReason = reason
	m.UpdatedAt = now
	m.IncrementVersion()

	m.AddDomainEvent(NewMatterResolvedEvent(m))

	return nil
}

// SetDescription updates the description
func (m *Matter) SetDescription(description string) {
	m.Description = description
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
}

// SessionCount returns the number of sessions held so far
func (m *Matter) SessionCount() int {
	held := 0
	for _, s := range m.Sessions {
		if s.Held {
			held++
		}
	}
	return held
}

// IsBillable returns true if the matter may have invoices raised against it
func (m *Matter) IsBillable() bool {
	return m.Status == MatterStatusActive || m.Status == MatterStatusSettled || m.Status == MatterStatusImpasse
}
