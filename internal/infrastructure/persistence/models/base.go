package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// PracticeAggregateModel provides common persistence fields for
// practice-scoped aggregate roots. It extends AggregateModel with the
// owning practice and creator info.
type PracticeAggregateModel struct {
	AggregateModel
	PracticeID uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy  *uuid.UUID `gorm:"type:uuid;index"`
}

// FromDomainPracticeAggregateRoot populates PracticeAggregateModel from domain PracticeAggregateRoot
func (m *PracticeAggregateModel) FromDomainPracticeAggregateRoot(p shared.PracticeAggregateRoot) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.PracticeID = p.PracticeID
	m.CreatedBy = p.CreatedBy
}

// PopulatePracticeAggregateRoot populates a domain PracticeAggregateRoot from the persistence model
func (m *PracticeAggregateModel) PopulatePracticeAggregateRoot(p *shared.PracticeAggregateRoot) {
	p.BaseAggregateRoot.BaseEntity.ID = m.ID
	p.BaseAggregateRoot.BaseEntity.CreatedAt = m.CreatedAt
	p.BaseAggregateRoot.BaseEntity.UpdatedAt = m.UpdatedAt
	p.BaseAggregateRoot.Version = m.Version
	p.PracticeID = m.PracticeID
	p.CreatedBy = m.CreatedBy
}

// practiceAggregateRoot builds a domain PracticeAggregateRoot from the model
func (m *PracticeAggregateModel) practiceAggregateRoot() shared.PracticeAggregateRoot {
	return shared.PracticeAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		PracticeID: m.PracticeID,
		CreatedBy:  m.CreatedBy,
	}
}
