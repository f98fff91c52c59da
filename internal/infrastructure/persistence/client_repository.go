package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client by its ID
func (r *GormClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Client, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByStripeCustomerID finds the client linked to a Stripe customer
func (r *GormClientRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.Client, error) {
	return r.findOne(ctx, "stripe_customer_id = ?", customerID)
}

func (r *GormClientRepository) findOne(ctx context.Context, cond string, arg any) (*identity.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Where(cond, arg).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForPractice finds a client by ID within a practice
func (r *GormClientRepository) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*identity.Client, error) {
	var model models.ClientModel
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

// FindAllForPractice finds all clients of a practice
func (r *GormClientRepository) FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]identity.Client, error) {
	var clientModels []models.ClientModel
	query := r.db.WithContext(ctx).Model(&models.ClientModel{}).
		Where("practice_id = ?", practiceID)
	query = applySharedFilter(query, filter, []string{"name", "email", "phone"})

	if err := query.Find(&clientModels).Error; err != nil {
		return nil, err
	}
	clients := make([]identity.Client, len(clientModels))
	for i, model := range clientModels {
		clients[i] = *model.ToDomain()
	}
	return clients, nil
}

// Save creates or updates a client
func (r *GormClientRepository) Save(ctx context.Context, client *identity.Client) error {
	model := models.ClientModelFromDomain(client)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a client
func (r *GormClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ClientModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForPractice counts clients of a practice
func (r *GormClientRepository) CountForPractice(ctx context.Context, practiceID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("practice_id = ?", practiceID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormClientRepository implements ClientRepository
var _ identity.ClientRepository = (*GormClientRepository)(nil)
