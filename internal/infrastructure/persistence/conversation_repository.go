package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/chat"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormConversationRepository implements ConversationRepository using GORM
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a new GormConversationRepository
func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// FindByID finds a conversation by its ID
func (r *GormConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*chat.Conversation, error) {
	var model models.ConversationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForPractice finds a conversation by ID within a practice
func (r *GormConversationRepository) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*chat.Conversation, error) {
	var model models.ConversationModel
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

// FindAllForPractice finds all conversations of a practice
func (r *GormConversationRepository) FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]chat.Conversation, error) {
	var conversationModels []models.ConversationModel
	query := r.db.WithContext(ctx).Model(&models.ConversationModel{}).
		Where("practice_id = ?", practiceID)
	query = applySharedFilter(query, filter, []string{"subject"})

	if err := query.Find(&conversationModels).Error; err != nil {
		return nil, err
	}
	conversations := make([]chat.Conversation, len(conversationModels))
	for i, model := range conversationModels {
		conversations[i] = *model.ToDomain()
	}
	return conversations, nil
}

// FindByMatter finds conversations attached to a matter
func (r *GormConversationRepository) FindByMatter(ctx context.Context, practiceID, matterID uuid.UUID) ([]chat.Conversation, error) {
	var conversationModels []models.ConversationModel
	if err := r.db.WithContext(ctx).
		Where("practice_id = ? AND matter_id = ?", practiceID, matterID).
		Order("last_message_at DESC NULLS LAST").
		Find(&conversationModels).Error; err != nil {
		return nil, err
	}
	conversations := make([]chat.Conversation, len(conversationModels))
	for i, model := range conversationModels {
		conversations[i] = *model.ToDomain()
	}
	return conversations, nil
}

// Save creates or updates a conversation
func (r *GormConversationRepository) Save(ctx context.Context, conversation *chat.Conversation) error {
	model := models.ConversationModelFromDomain(conversation)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormConversationRepository) SaveWithLock(ctx context.Context, conversation *chat.Conversation) error {
	model := models.ConversationModelFromDomain(conversation)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", conversation.ID, conversation.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// Delete deletes a conversation and its messages
func (r *GormConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.ConversationModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Ensure GormConversationRepository implements ConversationRepository
var _ chat.ConversationRepository = (*GormConversationRepository)(nil)

// GormMessageRepository implements MessageRepository using GORM
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// FindByID finds a message by its ID
func (r *GormMessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*chat.Message, error) {
	var model models.MessageModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByConversation lists messages in a conversation, oldest first
func (r *GormMessageRepository) FindByConversation(ctx context.Context, conversationID uuid.UUID, filter shared.Filter) ([]chat.Message, error) {
	query := r.db.WithContext(ctx).Model(&models.MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC")

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var messageModels []models.MessageModel
	if err := query.Find(&messageModels).Error; err != nil {
		return nil, err
	}
	messages := make([]chat.Message, len(messageModels))
	for i, model := range messageModels {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Save persists a message
func (r *GormMessageRepository) Save(ctx context.Context, message *chat.Message) error {
	model := models.MessageModelFromDomain(message)
	return r.db.WithContext(ctx).Save(model).Error
}

// CountUnread counts unread messages in a conversation not sent by the
// given participant
func (r *GormMessageRepository) CountUnread(ctx context.Context, conversationID, participantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, participantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormMessageRepository implements MessageRepository
var _ chat.MessageRepository = (*GormMessageRepository)(nil)
