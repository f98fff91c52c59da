package document

import (
	"context"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	shared.Filter
	MatterID *uuid.UUID      // Filter by matter
	FolderID *uuid.UUID      // Filter by folder
	Status   *DocumentStatus // Filter by status
}

// DocumentRepository defines the interface for document persistence
type DocumentRepository interface {
	// FindByID finds a document by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByIDForPractice finds a document by ID within a practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*Document, error)

	// FindAllForPractice finds all documents of a practice with filtering
	FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter DocumentFilter) ([]Document, error)

	// FindByMatter finds documents attached to a matter
	FindByMatter(ctx context.Context, practiceID, matterID uuid.UUID) ([]Document, error)

	// Save creates or updates a document
	Save(ctx context.Context, document *Document) error

	// Delete hard deletes a document record
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForPractice counts documents of a practice
	CountForPractice(ctx context.Context, practiceID uuid.UUID, filter DocumentFilter) (int64, error)

	// SumSizeForPractice returns total stored bytes for a practice, used
	// for storage quota checks
	SumSizeForPractice(ctx context.Context, practiceID uuid.UUID) (int64, error)
}

// FolderRepository defines the interface for folder persistence
type FolderRepository interface {
	// FindByID finds a folder by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Folder, error)

	// FindByIDForPractice finds a folder by ID within a practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*Folder, error)

	// FindChildren finds direct child folders of a parent (nil for roots)
	FindChildren(ctx context.Context, practiceID uuid.UUID, parentID *uuid.UUID) ([]Folder, error)

	// Save creates or updates a folder
	Save(ctx context.Context, folder *Folder) error

	// Delete deletes a folder
	Delete(ctx context.Context, id uuid.UUID) error
}
