package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/document"
)

// DocumentModel is the persistence model for the Document aggregate root.
type DocumentModel struct {
	PracticeAggregateModel
	FileName    string                  `gorm:"type:varchar(255);not null"`
	ContentType string                  `gorm:"type:varchar(100)"`
	SizeBytes   int64                   `gorm:"not null"`
	StorageKey  string                  `gorm:"type:varchar(500);not null;uniqueIndex"`
	Status      document.DocumentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	MatterID    *uuid.UUID              `gorm:"type:uuid;index"`
	FolderID    *uuid.UUID              `gorm:"type:uuid;index"`
	UploadedBy  uuid.UUID               `gorm:"type:uuid;not null"`
	ConfirmedAt *time.Time
	DeletedAt   *time.Time
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document entity.
func (m *DocumentModel) ToDomain() *document.Document {
	return &document.Document{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		FileName:              m.FileName,
		ContentType:           m.ContentType,
		SizeBytes:             m.SizeBytes,
		StorageKey:            m.StorageKey,
		Status:                m.Status,
		MatterID:              m.MatterID,
		FolderID:              m.FolderID,
		UploadedBy:            m.UploadedBy,
		ConfirmedAt:           m.ConfirmedAt,
		DeletedAt:             m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Document entity.
func (m *DocumentModel) FromDomain(d *document.Document) {
	m.FromDomainPracticeAggregateRoot(d.PracticeAggregateRoot)
	m.FileName = d.FileName
	m.ContentType = d.ContentType
	m.SizeBytes = d.SizeBytes
	m.StorageKey = d.StorageKey
	m.Status = d.Status
	m.MatterID = d.MatterID
	m.FolderID = d.FolderID
	m.UploadedBy = d.UploadedBy
	m.ConfirmedAt = d.ConfirmedAt
	m.DeletedAt = d.DeletedAt
}

// DocumentModelFromDomain creates a new persistence model from a domain Document.
func DocumentModelFromDomain(d *document.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// FolderModel is the persistence model for the Folder aggregate root.
type FolderModel struct {
	PracticeAggregateModel
	Name     string     `gorm:"type:varchar(200);not null"`
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (FolderModel) TableName() string {
	return "folders"
}

// ToDomain converts the persistence model to a domain Folder entity.
func (m *FolderModel) ToDomain() *document.Folder {
	return &document.Folder{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		Name:                  m.Name,
		ParentID:              m.ParentID,
	}
}

// FromDomain populates the persistence model from a domain Folder entity.
func (m *FolderModel) FromDomain(f *document.Folder) {
	m.FromDomainPracticeAggregateRoot(f.PracticeAggregateRoot)
	m.Name = f.Name
	m.ParentID = f.ParentID
}

// FolderModelFromDomain creates a new persistence model from a domain Folder.
func FolderModelFromDomain(f *document.Folder) *FolderModel {
	m := &FolderModel{}
	m.FromDomain(f)
	return m
}
