package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMatterRepository implements MatterRepository using GORM
type GormMatterRepository struct {
	db *gorm.DB
}

// NewGormMatterRepository creates a new GormMatterRepository
func NewGormMatterRepository(db *gorm.DB) *GormMatterRepository {
	return &GormMatterRepository{db: db}
}

// FindByID finds a matter by its ID
func (r *GormMatterRepository) FindByID(ctx context.Context, id uuid.UUID) (*matter.Matter, error) {
	var model models.MatterModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForPractice finds a matter by ID within a practice
func (r *GormMatterRepository) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*matter.Matter, error) {
	var model models.MatterModel
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

// FindByMatterNumber finds by matter number within a practice
func (r *GormMatterRepository) FindByMatterNumber(ctx context.Context, practiceID uuid.UUID, matterNumber string) (*matter.Matter, error) {
	var model models.MatterModel
	if err := r.db.WithContext(ctx).
		Where("practice_id = ? AND matter_number = ?", practiceID, matterNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForPractice finds all matters of a practice with filtering
func (r *GormMatterRepository) FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter matter.MatterFilter) ([]matter.Matter, error) {
	query := r.db.WithContext(ctx).Model(&models.MatterModel{}).
		Where("practice_id = ?", practiceID)
	return r.findMatters(r.applyMatterFilter(query, filter))
}

// FindByClient finds matters for a client
func (r *GormMatterRepository) FindByClient(ctx context.Context, practiceID, clientID uuid.UUID, filter matter.MatterFilter) ([]matter.Matter, error) {
	query := r.db.WithContext(ctx).Model(&models.MatterModel{}).
		Where("practice_id = ? AND client_id = ?", practiceID, clientID)
	return r.findMatters(r.applyMatterFilter(query, filter))
}

// FindByMediator finds matters assigned to a mediator
func (r *GormMatterRepository) FindByMediator(ctx context.Context, practiceID, mediatorID uuid.UUID, filter matter.MatterFilter) ([]matter.Matter, error) {
	query := r.db.WithContext(ctx).Model(&models.MatterModel{}).
		Where("practice_id = ? AND mediator_id = ?", practiceID, mediatorID)
	return r.findMatters(r.applyMatterFilter(query, filter))
}

func (r *GormMatterRepository) findMatters(query *gorm.DB) ([]matter.Matter, error) {
	var matterModels []models.MatterModel
	if err := query.Find(&matterModels).Error; err != nil {
		return nil, err
	}
	matters := make([]matter.Matter, len(matterModels))
	for i, model := range matterModels {
		matters[i] = *model.ToDomain()
	}
	return matters, nil
}

// Save creates or updates a matter
func (r *GormMatterRepository) Save(ctx context.Context, mt *matter.Matter) error {
	model := models.MatterModelFromDomain(mt)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormMatterRepository) SaveWithLock(ctx context.Context, mt *matter.Matter) error {
	model := models.MatterModelFromDomain(mt)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", mt.ID, mt.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// Delete deletes a matter
func (r *GormMatterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.MatterModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForPractice counts matters of a practice with optional filters
func (r *GormMatterRepository) CountForPractice(ctx context.Context, practiceID uuid.UUID, filter matter.MatterFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.MatterModel{}).
		Where("practice_id = ?", practiceID)
	query = r.applyMatterFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts matters by status for a practice
func (r *GormMatterRepository) CountByStatus(ctx context.Context, practiceID uuid.UUID, status matter.MatterStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MatterModel{}).
		Where("practice_id = ? AND status = ?", practiceID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// NextMatterNumber generates the next sequential matter number for a
// practice on the given date (format MAT-YYYYMMDD-NNNNN)
func (r *GormMatterRepository) NextMatterNumber(ctx context.Context, practiceID uuid.UUID, date time.Time) (string, error) {
	prefix := fmt.Sprintf("MAT-%s-", date.Format("20060102"))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.MatterModel{}).
		Select("matter_number").
		Where("practice_id = ? AND matter_number LIKE ?", practiceID, prefix+"%").
		Order("matter_number DESC").
		Limit(1).
		Pluck("matter_number", &maxNumber).Error; err != nil {
		return "", err
	}

	var nextNum int
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			fmt.Sscanf(parts[2], "%d", &nextNum)
		}
	}
	nextNum++

	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

// applyMatterFilter applies filter options including pagination and ordering
func (r *GormMatterRepository) applyMatterFilter(query *gorm.DB, filter matter.MatterFilter) *gorm.DB {
	query = r.applyMatterFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// applyMatterFilterWithoutPagination applies filter options without pagination
func (r *GormMatterRepository) applyMatterFilterWithoutPagination(query *gorm.DB, filter matter.MatterFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("matter_number ILIKE ? OR title ILIKE ? OR client_name ILIKE ? OR opposing_party ILIKE ?",
			searchPattern, searchPattern, searchPattern, searchPattern)
	}

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.MediatorID != nil {
		query = query.Where("mediator_id = ?", *filter.MediatorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}

	return query
}

// Ensure GormMatterRepository implements MatterRepository
var _ matter.MatterRepository = (*GormMatterRepository)(nil)
