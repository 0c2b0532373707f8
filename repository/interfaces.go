// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/smsflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// Transactor runs a unit of work atomically. Repositories called with the
// context passed to fn join the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ExistsByID(ctx context.Context, id uint) (bool, error)
	UpdateContent(ctx context.Context, id uint, name, messageTemplate *string) error
	Delete(ctx context.Context, id uint) (bool, error)
	// TransitionStatus moves the campaign to `to` only when its current status is one of `from`.
	// It reports whether a row changed.
	TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error)
	SetContactTotals(ctx context.Context, id uint, total int64, mapping models.FieldMapping) error
	IncrementSent(ctx context.Context, id uint) error
	IncrementFailed(ctx context.Context, id uint) error
	IncrementReplied(ctx context.Context, id uint) error
	// CompleteIfFinished marks a running campaign completed once every contact is terminal.
	CompleteIfFinished(ctx context.Context, id uint, at time.Time) (bool, error)
	// SaveDispatchProgress advances dispatch_cursor (never backwards) and sets dispatched_at when finishedAt is given.
	SaveDispatchProgress(ctx context.Context, id uint, cursor uint, finishedAt *time.Time) error
	// ResetDispatchProgress makes the next dispatch start from the first pending contact again.
	ResetDispatchProgress(ctx context.Context, id uint) error
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
	Totals(ctx context.Context) (*models.CampaignTotals, error)
}

// CampaignContactRepository defines operations for campaign contacts
type CampaignContactRepository interface {
	Repository[models.CampaignContact, models.CampaignContactFilter]
	DeleteByCampaign(ctx context.Context, campaignID uint) error
	// PendingBatch returns up to limit pending contacts with id > afterID in insertion order.
	PendingBatch(ctx context.Context, campaignID, afterID uint, limit int) ([]*models.CampaignContact, error)
	CountPending(ctx context.Context, campaignID uint) (int64, error)
	// MarkSent and MarkFailed only move pending contacts and report whether they did.
	MarkSent(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint, reason string) (bool, error)
	IncrementAttempts(ctx context.Context, id uint) error
	// LatestUnrepliedByPhone returns the most recent contact of a dispatched campaign
	// with the given phone number that has not replied yet.
	LatestUnrepliedByPhone(ctx context.Context, phone string) (*models.CampaignContact, error)
	MarkReplied(ctx context.Context, id uint, at time.Time) (bool, error)
}

// ConversationRepository defines operations for conversations
type ConversationRepository interface {
	Repository[models.Conversation, models.ConversationFilter]
	ByPhoneNumber(ctx context.Context, phone string) (*models.Conversation, error)
	FirstOrCreateByPhone(ctx context.Context, phone string) (*models.Conversation, error)
	UpdateName(ctx context.Context, id uint, name string) error
}

// MessageRepository defines operations for conversation messages
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	ListByConversation(ctx context.Context, conversationID uint) ([]*models.Message, error)
}
