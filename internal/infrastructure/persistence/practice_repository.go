package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormPracticeRepository implements PracticeRepository using GORM.
// The Practice aggregate carries its own GORM mapping, so no separate
// persistence model is needed.
type GormPracticeRepository struct {
	db *gorm.DB
}

// NewGormPracticeRepository creates a new GormPracticeRepository
func NewGormPracticeRepository(db *gorm.DB) *GormPracticeRepository {
	return &GormPracticeRepository{db: db}
}

// FindByID finds a practice by its ID
func (r *GormPracticeRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Practice, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByCode finds a practice by its unique code
func (r *GormPracticeRepository) FindByCode(ctx context.Context, code string) (*identity.Practice, error) {
	return r.findOne(ctx, "code = ?", strings.ToUpper(code))
}

// FindByDomain finds a practice by its custom subdomain
func (r *GormPracticeRepository) FindByDomain(ctx context.Context, domain string) (*identity.Practice, error) {
	return r.findOne(ctx, "domain = ?", strings.ToLower(domain))
}

// FindByStripeCustomerID finds the practice linked to a Stripe customer
func (r *GormPracticeRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.Practice, error) {
	return r.findOne(ctx, "stripe_customer_id = ?", customerID)
}

// FindByStripeAccountID finds the practice owning a connected Stripe account
func (r *GormPracticeRepository) FindByStripeAccountID(ctx context.Context, accountID string) (*identity.Practice, error) {
	return r.findOne(ctx, "stripe_account_id = ?", accountID)
}

func (r *GormPracticeRepository) findOne(ctx context.Context, cond string, arg any) (*identity.Practice, error) {
	var practice identity.Practice
	if err := r.db.WithContext(ctx).
		Where(cond, arg).
		First(&practice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &practice, nil
}

// FindAll finds all practices with filtering
func (r *GormPracticeRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Practice, error) {
	var practices []identity.Practice
	query := r.db.WithContext(ctx).Model(&identity.Practice{})
	query = applySharedFilter(query, filter, []string{"code", "name", "contact_email"})

	if err := query.Find(&practices).Error; err != nil {
		return nil, err
	}
	return practices, nil
}

// Save creates or updates a practice
func (r *GormPracticeRepository) Save(ctx context.Context, practice *identity.Practice) error {
	return r.db.WithContext(ctx).Save(practice).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormPracticeRepository) SaveWithLock(ctx context.Context, practice *identity.Practice) error {
	result := r.db.WithContext(ctx).
		Model(practice).
		Where("id = ? AND version = ?", practice.ID, practice.Version-1).
		Updates(practice)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// Delete deletes a practice
func (r *GormPracticeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&identity.Practice{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts practices
func (r *GormPracticeRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&identity.Practice{})
	query = applySharedSearch(query, filter, []string{"code", "name", "contact_email"})

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormPracticeRepository implements PracticeRepository
var _ identity.PracticeRepository = (*GormPracticeRepository)(nil)
