package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/document"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultStorageQuota is the per-practice storage allowance (10 GiB)
const DefaultStorageQuota = 10 << 30

// DefaultURLTTL is how long presigned upload and download URLs stay valid
const DefaultURLTTL = 15 * time.Minute

// DocumentService manages document metadata and brokers presigned access
// to the object store. File bytes never pass through the backend except
// for server-side copies.
type DocumentService struct {
	documentRepo document.DocumentRepository
	folderRepo   document.FolderRepository
	matterRepo   matter.MatterRepository
	storage      ObjectStorageService
	storageQuota int64
	urlTTL       time.Duration
	logger       *zap.Logger
}

// DocumentServiceConfig contains the dependencies for DocumentService
type DocumentServiceConfig struct {
	DocumentRepo document.DocumentRepository
	FolderRepo   document.FolderRepository
	MatterRepo   matter.MatterRepository
	Storage      ObjectStorageService
	StorageQuota int64
	URLTTL       time.Duration
	Logger       *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) *DocumentService {
	quota := cfg.StorageQuota
	if quota <= 0 {
		quota = DefaultStorageQuota
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &DocumentService{
		documentRepo: cfg.DocumentRepo,
		folderRepo:   cfg.FolderRepo,
		matterRepo:   cfg.MatterRepo,
		storage:      cfg.Storage,
		storageQuota: quota,
		urlTTL:       ttl,
		logger:       cfg.Logger,
	}
}

// RequestUploadInput contains the fields for registering an upload
type RequestUploadInput struct {
	FileName    string     `json:"file_name" binding:"required"`
	ContentType string     `json:"content_type" binding:"required"`
	SizeBytes   int64      `json:"size_bytes" binding:"required,min=1"`
	MatterID    *uuid.UUID `json:"matter_id"`
	FolderID    *uuid.UUID `json:"folder_id"`
}

// UploadTicket is returned when an upload is registered: the client PUTs
// the file to UploadURL, then calls confirm
type UploadTicket struct {
	DocumentID uuid.UUID `json:"document_id"`
	UploadURL  string    `json:"upload_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DownloadTicket carries a presigned download URL
type DownloadTicket struct {
	DocumentID uuid.UUID `json:"document_id"`
	FileName   string    `json:"file_name"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID          uuid.UUID  `json:"id"`
	PracticeID  uuid.UUID  `json:"practice_id"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	Status      string     `json:"status"`
	MatterID    *uuid.UUID `json:"matter_id,omitempty"`
	FolderID    *uuid.UUID `json:"folder_id,omitempty"`
	UploadedBy  uuid.UUID  `json:"uploaded_by"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FolderResponse represents a folder in API responses
type FolderResponse struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// DocumentListFilter defines the query parameters for listing documents
type DocumentListFilter struct {
	MatterID *uuid.UUID `form:"matter_id"`
	FolderID *uuid.UUID `form:"folder_id"`
	Status   string     `form:"status"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// RequestUpload registers a pending document and returns a presigned PUT
// URL. The document stays pending until the upload is confirmed.
func (s *DocumentService) RequestUpload(ctx context.Context, practiceID, userID uuid.UUID, input RequestUploadInput) (*UploadTicket, error) {
	used, err := s.documentRepo.SumSizeForPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if used+input.SizeBytes > s.storageQuota {
		return nil, shared.NewDomainError("STORAGE_QUOTA_EXCEEDED", "Practice storage quota exceeded")
	}

	doc, err := document.NewDocument(practiceID, input.FileName, input.ContentType, input.SizeBytes, userID)
	if err != nil {
		return nil, err
	}

	if input.MatterID != nil {
		if _, err := s.matterRepo.FindByIDForPractice(ctx, practiceID, *input.MatterID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Matter not found")
			}
			return nil, err
		}
		if err := doc.AttachToMatter(*input.MatterID); err != nil {
			return nil, err
		}
	}
	if input.FolderID != nil {
		if _, err := s.folderRepo.FindByIDForPractice(ctx, practiceID, *input.FolderID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Folder not found")
			}
			return nil, err
		}
		doc.MoveToFolder(input.FolderID)
	}

	uploadURL, expiresAt, err := s.storage.GenerateUploadURL(ctx, doc.StorageKey, doc.ContentType, s.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	if err := s.documentRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Info("Upload registered",
		zap.String("practice_id", practiceID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Int64("size_bytes", input.SizeBytes))

	return &UploadTicket{
		DocumentID: doc.ID,
		UploadURL:  uploadURL,
		ExpiresAt:  expiresAt,
	}, nil
}

// ConfirmUpload verifies the object landed in storage and marks the
// document available
func (s *DocumentService) ConfirmUpload(ctx context.Context, practiceID, documentID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.loadDocument(ctx, practiceID, documentID)
	if err != nil {
		return nil, err
	}

	exists, err := s.storage.ObjectExists(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check object: %w", err)
	}
	if !exists {
		return nil, shared.NewDomainError("UPLOAD_INCOMPLETE", "Object not found in storage; upload the file first")
	}

	if err := doc.ConfirmUpload(); err != nil {
		return nil, err
	}
	if err := s.documentRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	return toDocumentResponse(doc), nil
}

// GetDownloadURL returns a presigned GET URL for an available document
func (s *DocumentService) GetDownloadURL(ctx context.Context, practiceID, documentID uuid.UUID) (*DownloadTicket, error) {
	doc, err := s.loadDocument(ctx, practiceID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsAvailable() {
		return nil, shared.NewDomainError("NOT_AVAILABLE", "Document is not available for download")
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, doc.StorageKey, s.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return &DownloadTicket{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		URL:        url,
		ExpiresAt:  expiresAt,
	}, nil
}

// GetDocument returns a document's metadata
func (s *DocumentService) GetDocument(ctx context.Context, practiceID, documentID uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.loadDocument(ctx, practiceID, documentID)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

// ListDocuments returns the practice's documents with filtering
func (s *DocumentService) ListDocuments(ctx context.Context, practiceID uuid.UUID, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	domainFilter := document.DocumentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
		},
		MatterID: filter.MatterID,
		FolderID: filter.FolderID,
	}
	if filter.Status != "" {
		status := document.DocumentStatus(strings.ToUpper(filter.Status))
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_STATUS", "Document status is not valid")
		}
		domainFilter.Status = &status
	}

	docs, err := s.documentRepo.FindAllForPractice(ctx, practiceID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.documentRepo.CountForPractice(ctx, practiceID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		responses = append(responses, *toDocumentResponse(&docs[i]))
	}
	return responses, total, nil
}

// MoveDocument places the document in a folder, or the root when folderID
// is nil
func (s *DocumentService) MoveDocument(ctx context.Context, practiceID, documentID uuid.UUID, folderID *uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.loadDocument(ctx, practiceID, documentID)
	if err != nil {
		return nil, err
	}

	if folderID != nil {
		if _, err := s.folderRepo.FindByIDForPractice(ctx, practiceID, *folderID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Folder not found")
			}
			return nil, err
		}
	}

	doc.MoveToFolder(folderID)
	if err := s.documentRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	return toDocumentResponse(doc), nil
}

// DeleteDocument soft deletes the document and removes the stored object.
// Object removal failures are logged, not surfaced: the metadata is
// authoritative and orphaned objects can be swept later.
func (s *DocumentService) DeleteDocument(ctx context.Context, practiceID, documentID uuid.UUID) error {
	doc, err := s.loadDocument(ctx, practiceID, documentID)
	if err != nil {
		return err
	}

	if err := doc.MarkDeleted(); err != nil {
		return err
	}
	if err := s.documentRepo.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("Failed to delete stored object",
			zap.String("document_id", documentID.String()),
			zap.String("storage_key", doc.StorageKey),
			zap.Error(err))
	}

	return nil
}

// CopyMatterDocuments copies every available document from one matter to
// another using server-side object copies. Returns the new documents.
func (s *DocumentService) CopyMatterDocuments(ctx context.Context, practiceID, sourceMatterID, destMatterID uuid.UUID, copiedBy uuid.UUID) ([]DocumentResponse, error) {
	if _, err := s.matterRepo.FindByIDForPractice(ctx, practiceID, destMatterID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Destination matter not found")
		}
		return nil, err
	}

	docs, err := s.documentRepo.FindByMatter(ctx, practiceID, sourceMatterID)
	if err != nil {
		return nil, err
	}

	copied := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		src := &docs[i]
		if !src.IsAvailable() {
			continue
		}

		dup, err := document.NewDocument(practiceID, src.FileName, src.ContentType, src.SizeBytes, copiedBy)
		if err != nil {
			return nil, err
		}
		if err := dup.AttachToMatter(destMatterID); err != nil {
			return nil, err
		}

		if err := s.storage.CopyObject(ctx, src.StorageKey, dup.StorageKey); err != nil {
			return nil, fmt.Errorf("failed to copy object %s: %w", src.StorageKey, err)
		}
		if err := dup.ConfirmUpload(); err != nil {
			return nil, err
		}
		if err := s.documentRepo.Save(ctx, dup); err != nil {
			return nil, fmt.Errorf("failed to save document: %w", err)
		}

		copied = append(copied, *toDocumentResponse(dup))
	}

	s.logger.Info("Matter documents copied",
		zap.String("practice_id", practiceID.String()),
		zap.String("source_matter_id", sourceMatterID.String()),
		zap.String("dest_matter_id", destMatterID.String()),
		zap.Int("count", len(copied)))

	return copied, nil
}

// CreateFolder creates a folder, optionally nested under a parent
func (s *DocumentService) CreateFolder(ctx context.Context, practiceID uuid.UUID, name string, parentID *uuid.UUID) (*FolderResponse, error) {
	if parentID != nil {
		if _, err := s.folderRepo.FindByIDForPractice(ctx, practiceID, *parentID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Parent folder not found")
			}
			return nil, err
		}
	}

	folder, err := document.NewFolder(practiceID, name, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.folderRepo.Save(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to save folder: %w", err)
	}

	return &FolderResponse{ID: folder.ID, Name: folder.Name, ParentID: folder.ParentID}, nil
}

// RenameFolder renames a folder
func (s *DocumentService) RenameFolder(ctx context.Context, practiceID, folderID uuid.UUID, name string) (*FolderResponse, error) {
	folder, err := s.folderRepo.FindByIDForPractice(ctx, practiceID, folderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Folder not found")
		}
		return nil, err
	}

	if err := folder.Rename(name); err != nil {
		return nil, err
	}
	if err := s.folderRepo.Save(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to save folder: %w", err)
	}

	return &FolderResponse{ID: folder.ID, Name: folder.Name, ParentID: folder.ParentID}, nil
}

// ListFolders returns direct children of a parent folder (nil for roots)
func (s *DocumentService) ListFolders(ctx context.Context, practiceID uuid.UUID, parentID *uuid.UUID) ([]FolderResponse, error) {
	folders, err := s.folderRepo.FindChildren(ctx, practiceID, parentID)
	if err != nil {
		return nil, err
	}

	responses := make([]FolderResponse, 0, len(folders))
	for i := range folders {
		responses = append(responses, FolderResponse{
			ID:       folders[i].ID,
			Name:     folders[i].Name,
			ParentID: folders[i].ParentID,
		})
	}
	return responses, nil
}

// DeleteFolder deletes an empty folder. Folders containing documents or
// subfolders must be emptied first.
func (s *DocumentService) DeleteFolder(ctx context.Context, practiceID, folderID uuid.UUID) error {
	folder, err := s.folderRepo.FindByIDForPractice(ctx, practiceID, folderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "Folder not found")
		}
		return err
	}

	children, err := s.folderRepo.FindChildren(ctx, practiceID, &folderID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return shared.NewDomainError("FOLDER_NOT_EMPTY", "Folder contains subfolders")
	}

	count, err := s.documentRepo.CountForPractice(ctx, practiceID, document.DocumentFilter{FolderID: &folderID})
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.NewDomainError("FOLDER_NOT_EMPTY", "Folder contains documents")
	}

	return s.folderRepo.Delete(ctx, folder.ID)
}

func (s *DocumentService) loadDocument(ctx context.Context, practiceID, documentID uuid.UUID) (*document.Document, error) {
	doc, err := s.documentRepo.FindByIDForPractice(ctx, practiceID, documentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Document not found")
		}
		return nil, err
	}
	return doc, nil
}

func toDocumentResponse(d *document.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		PracticeID:  d.PracticeID,
		FileName:    d.FileName,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Status:      string(d.Status),
		MatterID:    d.MatterID,
		FolderID:    d.FolderID,
		UploadedBy:  d.UploadedBy,
		ConfirmedAt: d.ConfirmedAt,
		CreatedAt:   d.CreatedAt,
	}
}
