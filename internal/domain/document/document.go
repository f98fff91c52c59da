package document

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// DocumentStatus represents the upload lifecycle of a document
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "PENDING"   // Upload URL issued, object not yet confirmed
	DocumentStatusAvailable DocumentStatus = "AVAILABLE" // Object confirmed in storage
	DocumentStatusDeleted   DocumentStatus = "DELETED"   // Soft deleted, object removal scheduled
)

// IsValid checks if the status is valid
func (s DocumentStatus) IsValid() bool {
	return s == DocumentStatusPending || s == DocumentStatusAvailable || s == DocumentStatusDeleted
}

// MaxDocumentSize is the largest object a practice may upload (100 MiB)
const MaxDocumentSize = 100 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".txt":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Document is the aggregate root for a stored file. The object itself lives
// in S3-compatible storage; the aggregate tracks metadata and upload state.
type Document struct {
	shared.PracticeAggregateRoot
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	SizeBytes   int64          `json:"size_bytes"`
	StorageKey  string         `json:"storage_key"` // Object key in the bucket
	Status      DocumentStatus `json:"status"`
	MatterID    *uuid.UUID     `json:"matter_id"` // Optional matter attachment
	FolderID    *uuid.UUID     `json:"folder_id"` // Optional folder placement
	UploadedBy  uuid.UUID      `json:"uploaded_by"`
	ConfirmedAt *time.Time     `json:"confirmed_at"`
	DeletedAt   *time.Time     `json:"deleted_at"`
}

// NewDocument registers a pending document and derives its storage key.
// The caller then issues a presigned upload URL for the key.
func NewDocument(practiceID uuid.UUID, fileName, contentType string, sizeBytes int64, uploadedBy uuid.UUID) (*Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if len(fileName) > 255 {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot exceed 255 characters")
	}
	ext := strings.ToLower(path.Ext(fileName))
	if !allowedExtensions[ext] {
		return nil, shared.NewDomainError("UNSUPPORTED_FILE_TYPE", fmt.Sprintf("File type %q is not allowed", ext))
	}
	if sizeBytes <= 0 {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE", "File size must be positive")
	}
	if sizeBytes > MaxDocumentSize {
		return nil, shared.NewDomainError("FILE_TOO_LARGE", "File exceeds the maximum allowed size")
	}
	if uploadedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UPLOADER", "Uploader ID cannot be empty")
	}

	doc := &Document{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		FileName:              fileName,
		ContentType:           contentType,
		SizeBytes:             sizeBytes,
		Status:                DocumentStatusPending,
		UploadedBy:            uploadedBy,
	}
	doc.StorageKey = fmt.Sprintf("practices/%s/documents/%s%s", practiceID, doc.ID, ext)

	return doc, nil
}

// AttachToMatter links the document to a matter
func (d *Document) AttachToMatter(matterID uuid.UUID) error {
	if matterID == uuid.Nil {
		return shared.NewDomainError("INVALID_MATTER", "Matter ID cannot be empty")
	}
	d.MatterID = &matterID
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	return nil
}

// MoveToFolder places the document in a folder (nil moves it to the root)
func (d *Document) MoveToFolder(folderID *uuid.UUID) {
	d.FolderID = folderID
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
}

// ConfirmUpload marks the object as present in storage
func (d *Document) ConfirmUpload() error {
	if d.Status != DocumentStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm upload for document in %s status", d.Status))
	}

	now := time.Now()
	d.Status = DocumentStatusAvailable
	d.ConfirmedAt = &now
	d.UpdatedAt = now
	d.IncrementVersion()

	return nil
}

// MarkDeleted soft deletes the document
func (d *Document) MarkDeleted() error {
	if d.Status == DocumentStatusDeleted {
		return shared.NewDomainError("ALREADY_DELETED", "Document is already deleted")
	}

	now := time.Now()
	d.Status = DocumentStatusDeleted
	d.DeletedAt = &now
	d.UpdatedAt = now
	d.IncrementVersion()

	return nil
}

// IsAvailable returns true if the document can be downloaded
func (d *Document) IsAvailable() bool {
	return d.Status == DocumentStatusAvailable
}

// Folder groups documents within a practice
type Folder struct {
	shared.PracticeAggregateRoot
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"` // Nil for root folders
}

// NewFolder creates a folder
func NewFolder(practiceID uuid.UUID, name string, parentID *uuid.UUID) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_FOLDER_NAME", "Folder name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_FOLDER_NAME", "Folder name cannot exceed 200 characters")
	}

	return &Folder{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		Name:                  name,
		ParentID:              parentID,
	}, nil
}

// Rename changes the folder name
func (f *Folder) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_FOLDER_NAME", "Folder name cannot be empty")
	}

	f.Name = name
	f.UpdatedAt = time.Now()
	f.IncrementVersion()

	return nil
}
