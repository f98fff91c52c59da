package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/matter"
)

// MatterModel is the persistence model for the Matter aggregate root.
type MatterModel struct {
	PracticeAggregateModel
	MatterNumber  string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_matter_practice_number,priority:2"`
	Title         string                `gorm:"type:varchar(300);not null"`
	Type          matter.MatterType     `gorm:"type:varchar(20);not null;index"`
	Status        matter.MatterStatus   `gorm:"type:varchar(20);not null;default:'INTAKE';index"`
	ClientID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	ClientName    string                `gorm:"type:varchar(200);not null"`
	OpposingParty string                `gorm:"type:varchar(200)"`
	MediatorID    *uuid.UUID            `gorm:"type:uuid;index"`
	Sessions      matter.SessionRecords `gorm:"type:jsonb;default:'[]'"`
	Description   string                `gorm:"type:text"`
	OpenedAt      *time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time
	CloseReason   string `gorm:"type:varchar(500)"`
	OutcomeNotes  string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (MatterModel) TableName() string {
	return "matters"
}

// ToDomain converts the persistence model to a domain Matter entity.
func (m *MatterModel) ToDomain() *matter.Matter {
	return &matter.Matter{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		MatterNumber:          m.MatterNumber,
		Title:                 m.Title,
		Type:                  m.Type,
		Status:                m.Status,
		ClientID:              m.ClientID,
		ClientName:            m.ClientName,
		OpposingParty:         m.OpposingParty,
		MediatorID:            m.MediatorID,
		Sessions:              m.Sessions,
		Description:           m.Description,
		OpenedAt:              m.OpenedAt,
		ResolvedAt:            m.ResolvedAt,
		ClosedAt:              m.ClosedAt,
		CloseReason:           m.CloseReason,
		OutcomeNotes:          m.OutcomeNotes,
	}
}

// FromDomain populates the persistence model from a domain Matter entity.
func (m *MatterModel) FromDomain(mt *matter.Matter) {
	m.FromDomainPracticeAggregateRoot(mt.PracticeAggregateRoot)
	m.MatterNumber = mt.MatterNumber
	m.Title = mt.Title
	m.Type = mt.Type
	m.Status = mt.Status
	m.ClientID = mt.ClientID
	m.ClientName = mt.ClientName
	m.OpposingParty = mt.OpposingParty
	m.MediatorID = mt.MediatorID
	m.Sessions = mt.Sessions
	m.Description = mt.Description
	m.OpenedAt = mt.OpenedAt
	m.ResolvedAt = mt.ResolvedAt
	m.ClosedAt = mt.ClosedAt
	m.CloseReason = mt.CloseReason
	m.OutcomeNotes = mt.OutcomeNotes
}

// MatterModelFromDomain creates a new persistence model from a domain Matter.
func MatterModelFromDomain(mt *matter.Matter) *MatterModel {
	m := &MatterModel{}
	m.FromDomain(mt)
	return m
}
