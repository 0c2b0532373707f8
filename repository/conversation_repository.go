package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/smsflow/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepositoryImpl implements the ConversationRepository interface
type ConversationRepositoryImpl struct {
	*BaseRepository[models.Conversation, models.ConversationFilter]
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &ConversationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Conversation, models.ConversationFilter](db),
	}
}

// ByFilter retrieves conversations based on filter criteria
func (r *ConversationRepositoryImpl) ByFilter(ctx context.Context, filter models.ConversationFilter, orderBy string, limit, offset int) ([]*models.Conversation, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Conversation{})
	if filter.PhoneNumber != nil {
		query = query.Where("phone_number = ?", *filter.PhoneNumber)
	}
	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var conversations []*models.Conversation
	if err := query.Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("failed to find conversations by filter: %w", err)
	}

	return conversations, nil
}

// Count returns the number of conversations matching the filter
func (r *ConversationRepositoryImpl) Count(ctx context.Context, filter models.ConversationFilter) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Conversation{})
	if filter.PhoneNumber != nil {
		query = query.Where("phone_number = ?", *filter.PhoneNumber)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// ByPhoneNumber retrieves a conversation by phone number
func (r *ConversationRepositoryImpl) ByPhoneNumber(ctx context.Context, phone string) (*models.Conversation, error) {
	db := r.getDB(ctx)

	var conversation models.Conversation
	err := db.Where("phone_number = ?", phone).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find conversation by phone: %w", err)
	}

	return &conversation, nil
}

// FirstOrCreateByPhone returns the conversation for phone, creating it when missing.
// Concurrent creators converge on the same row through the unique phone index.
func (r *ConversationRepositoryImpl) FirstOrCreateByPhone(ctx context.Context, phone string) (*models.Conversation, error) {
	err := r.withWrite(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_number"}},
			DoNothing: true,
		}).Create(&models.Conversation{PhoneNumber: phone}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	conversation, err := r.ByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation for %s vanished after create", phone)
	}
	return conversation, nil
}

// UpdateName sets the display name of a conversation
func (r *ConversationRepositoryImpl) UpdateName(ctx context.Context, id uint, name string) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		if err := db.Model(&models.Conversation{}).Where("id = ?", id).Update("name", name).Error; err != nil {
			return fmt.Errorf("failed to update conversation %d: %w", id, err)
		}
		return nil
	})
}
