package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// PracticeAggregateRoot extends BaseAggregateRoot with practice (tenant) scoping.
// Every row owned by a practice carries its PracticeID so queries can never
// cross practice boundaries.
type PracticeAggregateRoot struct {
	BaseAggregateRoot
	PracticeID uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy  *uuid.UUID `gorm:"type:uuid;index"`
}

// NewPracticeAggregateRoot creates a new practice-scoped aggregate root
func NewPracticeAggregateRoot(practiceID uuid.UUID) PracticeAggregateRoot {
	return PracticeAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		PracticeID:        practiceID,
	}
}

// NewPracticeAggregateRootWithCreator creates a new practice-scoped aggregate root with creator info
func NewPracticeAggregateRootWithCreator(practiceID, createdBy uuid.UUID) PracticeAggregateRoot {
	return PracticeAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		PracticeID:        practiceID,
		CreatedBy:         &createdBy,
	}
}

// SetCreatedBy sets the creator user ID
func (p *PracticeAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	p.CreatedBy = &userID
}

// GetCreatedBy returns the creator user ID
func (p *PracticeAggregateRoot) GetCreatedBy() *uuid.UUID {
	return p.CreatedBy
}
