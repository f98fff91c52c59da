package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/document"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDocumentRepository implements DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID finds a document by its ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForPractice finds a document by ID within a practice
func (r *GormDocumentRepository) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*document.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("practice_id = ? AND id = ?", practiceID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForPractice finds all documents of a practice with filtering
func (r *GormDocumentRepository) FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter document.DocumentFilter) ([]document.Document, error) {
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("practice_id = ?", practiceID)
	query = r.applyDocumentFilter(query, filter)
	query = applySharedFilter(query, filter.Filter, []string{"file_name"})
	return r.findDocuments(query)
}

// FindByMatter finds documents attached to a matter
func (r *GormDocumentRepository) FindByMatter(ctx context.Context, practiceID, matterID uuid.UUID) ([]document.Document, error) {
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("practice_id = ? AND matter_id = ?", practiceID, matterID).
		Order("created_at DESC")
	return r.findDocuments(query)
}

func (r *GormDocumentRepository) findDocuments(query *gorm.DB) ([]document.Document, error) {
	var documentModels []models.DocumentModel
	if err := query.Find(&documentModels).Error; err != nil {
		return nil, err
	}
	documents := make([]document.Document, len(documentModels))
	for i, model := range documentModels {
		documents[i] = *model.ToDomain()
	}
	return documents, nil
}

// Save creates or updates a document
func (r *GormDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	model := models.DocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete hard deletes a document record
func (r *GormDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DocumentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForPractice counts documents of a practice
func (r *GormDocumentRepository) CountForPractice(ctx context.Context, practiceID uuid.UUID, filter document.DocumentFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("practice_id = ?", practiceID)
	query = r.applyDocumentFilter(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumSizeForPractice returns total stored bytes for a practice. Deleted
// documents are excluded since their objects are scheduled for removal.
func (r *GormDocumentRepository) SumSizeForPractice(ctx context.Context, practiceID uuid.UUID) (int64, error) {
	var result struct {
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Select("COALESCE(SUM(size_bytes), 0) as total").
		Where("practice_id = ? AND status <> ?", practiceID, document.DocumentStatusDeleted).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

func (r *GormDocumentRepository) applyDocumentFilter(query *gorm.DB, filter document.DocumentFilter) *gorm.DB {
	if filter.MatterID != nil {
		query = query.Where("matter_id = ?", *filter.MatterID)
	}
	if filter.FolderID != nil {
		query = query.Where("folder_id = ?", *filter.FolderID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// Ensure GormDocumentRepository implements DocumentRepository
var _ document.DocumentRepository = (*GormDocumentRepository)(nil)

// GormFolderRepository implements FolderRepository using GORM
type GormFolderRepository struct {
	db *gorm.DB
}

// NewGormFolderRepository creates a new GormFolderRepository
func NewGormFolderRepository(db *gorm.DB) *GormFolderRepository {
	return &GormFolderRepository{db: db}
}

// FindByID finds a folder by its ID
func (r *GormFolderRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Folder, error) {
	var model models.FolderModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForPractice finds a folder by ID within a practice
func (r *GormFolderRepository) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*document.Folder, error) {
	var model models.FolderModel
	if err := r.db.WithContext(ctx).
		Where("practice_id = ? AND id = ?", practiceID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindChildren finds direct child folders of a parent (nil for roots)
func (r *GormFolderRepository) FindChildren(ctx context.Context, practiceID uuid.UUID, parentID *uuid.UUID) ([]document.Folder, error) {
	query := r.db.WithContext(ctx).Model(&models.FolderModel{}).
		Where("practice_id = ?", practiceID)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var folderModels []models.FolderModel
	if err := query.Order("name ASC").Find(&folderModels).Error; err != nil {
		return nil, err
	}
	folders := make([]document.Folder, len(folderModels))
	for i, model := range folderModels {
		folders[i] = *model.ToDomain()
	}
	return folders, nil
}

// Save creates or updates a folder
func (r *GormFolderRepository) Save(ctx context.Context, folder *document.Folder) error {
	model := models.FolderModelFromDomain(folder)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a folder
func (r *GormFolderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FolderModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormFolderRepository implements FolderRepository
var _ document.FolderRepository = (*GormFolderRepository)(nil)
