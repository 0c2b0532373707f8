package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/smsflow/models"
	"gorm.io/gorm"
)

// CampaignContactRepositoryImpl implements the CampaignContactRepository interface
type CampaignContactRepositoryImpl struct {
	*BaseRepository[models.CampaignContact, models.CampaignContactFilter]
}

// NewCampaignContactRepository creates a new campaign contact repository
func NewCampaignContactRepository(db *gorm.DB) CampaignContactRepository {
	return &CampaignContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignContact, models.CampaignContactFilter](db),
	}
}

// ByFilter retrieves contacts based on filter criteria
func (r *CampaignContactRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignContactFilter, orderBy string, limit, offset int) ([]*models.CampaignContact, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.CampaignContact{}), filter)

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

	var contacts []*models.CampaignContact
	if err := query.Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaign contacts by filter: %w", err)
	}

	return contacts, nil
}

// Count returns the number of contacts matching the filter
func (r *CampaignContactRepositoryImpl) Count(ctx context.Context, filter models.CampaignContactFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.CampaignContact{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaign contacts: %w", err)
	}

	return count, nil
}

// DeleteByCampaign removes every contact of a campaign
func (r *CampaignContactRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		if err := db.Where("campaign_id = ?", campaignID).Delete(&models.CampaignContact{}).Error; err != nil {
			return fmt.Errorf("failed to delete contacts of campaign %d: %w", campaignID, err)
		}
		return nil
	})
}

// PendingBatch pages through pending contacts by primary key. Keyset paging keeps
// batches stable while earlier contacts change status.
func (r *CampaignContactRepositoryImpl) PendingBatch(ctx context.Context, campaignID, afterID uint, limit int) ([]*models.CampaignContact, error) {
	db := r.getDB(ctx)

	var contacts []*models.CampaignContact
	err := db.Where("campaign_id = ? AND status = ? AND id > ?", campaignID, models.ContactStatusPending, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending contacts of campaign %d: %w", campaignID, err)
	}

	return contacts, nil
}

// CountPending returns the number of pending contacts of a campaign
func (r *CampaignContactRepositoryImpl) CountPending(ctx context.Context, campaignID uint) (int64, error) {
	status := models.ContactStatusPending
	return r.Count(ctx, models.CampaignContactFilter{CampaignID: &campaignID, Status: &status})
}

// MarkSent moves a pending contact to sent
func (r *CampaignContactRepositoryImpl) MarkSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.finish(ctx, id, map[string]any{
		"status":        models.ContactStatusSent,
		"sent_at":       at,
		"error_message": nil,
	})
}

// MarkFailed moves a pending contact to failed with the given reason
func (r *CampaignContactRepositoryImpl) MarkFailed(ctx context.Context, id uint, reason string) (bool, error) {
	if reason == "" {
		reason = "unknown error"
	}
	return r.finish(ctx, id, map[string]any{
		"status":        models.ContactStatusFailed,
		"error_message": reason,
	})
}

func (r *CampaignContactRepositoryImpl) finish(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	var applied bool
	err := r.withWrite(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.CampaignContact{}).
			Where("id = ? AND status = ?", id, models.ContactStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update contact %d: %w", id, res.Error)
		}
		applied = res.RowsAffected > 0
		return nil
	})
	return applied, err
}

// IncrementAttempts records one more delivery attempt
func (r *CampaignContactRepositoryImpl) IncrementAttempts(ctx context.Context, id uint) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.CampaignContact{}).
			Where("id = ?", id).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("failed to increment attempts of contact %d: %w", id, err)
		}
		return nil
	})
}

// LatestUnrepliedByPhone finds the newest un-replied contact of a dispatched campaign
func (r *CampaignContactRepositoryImpl) LatestUnrepliedByPhone(ctx context.Context, phone string) (*models.CampaignContact, error) {
	db := r.getDB(ctx)

	dispatched := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Campaign{}).
		Select("id").
		Where("status IN ?", []models.CampaignStatus{models.CampaignStatusRunning, models.CampaignStatusCompleted})

	var contact models.CampaignContact
	err := db.Where("phone_number = ? AND replied_at IS NULL", phone).
		Where("campaign_id IN (?)", dispatched).
		Order("created_at DESC, id DESC").
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contact by phone: %w", err)
	}

	return &contact, nil
}

// MarkReplied sets replied_at once; later calls report false
func (r *CampaignContactRepositoryImpl) MarkReplied(ctx context.Context, id uint, at time.Time) (bool, error) {
	var applied bool
	err := r.withWrite(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.CampaignContact{}).
			Where("id = ? AND replied_at IS NULL", id).
			Update("replied_at", at)
		if res.Error != nil {
			return fmt.Errorf("failed to mark contact %d replied: %w", id, res.Error)
		}
		applied = res.RowsAffected > 0
		return nil
	})
	return applied, err
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignContactRepositoryImpl) applyFilter(query *gorm.DB, filter models.CampaignContactFilter) *gorm.DB {
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PhoneNumber != nil {
		query = query.Where("phone_number = ?", *filter.PhoneNumber)
	}
	if filter.Replied != nil {
		if *filter.Replied {
			query = query.Where("replied_at IS NOT NULL")
		} else {
			query = query.Where("replied_at IS NULL")
		}
	}
	return query
}
