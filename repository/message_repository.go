package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/smsflow/models"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements the MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// ByFilter retrieves messages based on filter criteria
func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Message{}), filter)
	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var messages []*models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages by filter: %w", err)
	}
	return messages, nil
}

// Count returns the number of messages matching the filter
func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Message{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// ListByConversation returns a conversation's messages oldest first
func (r *MessageRepositoryImpl) ListByConversation(ctx context.Context, conversationID uint) ([]*models.Message, error) {
	return r.ByFilter(ctx, models.MessageFilter{ConversationID: &conversationID}, "created_at ASC, id ASC", 0, 0)
}

func (r *MessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.MessageFilter) *gorm.DB {
	if filter.ConversationID != nil {
		query = query.Where("conversation_id = ?", *filter.ConversationID)
	}
	if filter.IsOutgoing != nil {
		query = query.Where("is_outgoing = ?", *filter.IsOutgoing)
	}
	return query
}
