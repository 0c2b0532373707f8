package repository

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/amirphl/smsflow/models"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("uuid = ?", uuid).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign by UUID: %w", err)
	}

	return &campaign, nil
}

// ExistsByID checks whether a campaign row is still present
func (r *CampaignRepositoryImpl) ExistsByID(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	if err := db.Model(&models.Campaign{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check campaign %d: %w", id, err)
	}
	return count > 0, nil
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	if orderBy == "" {
		orderBy = "created_at DESC, id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Campaign{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

// UpdateContent changes name and/or message template
func (r *CampaignRepositoryImpl) UpdateContent(ctx context.Context, id uint, name, messageTemplate *string) error {
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if messageTemplate != nil {
		updates["message_template"] = *messageTemplate
	}
	if len(updates) == 0 {
		return nil
	}

	return r.withWrite(ctx, func(db *gorm.DB) error {
		if err := db.Model(&models.Campaign{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update campaign %d: %w", id, err)
		}
		return nil
	})
}

// Delete removes a campaign; contacts are removed by the foreign key cascade
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.withWrite(ctx, func(db *gorm.DB) error {
		res := db.Delete(&models.Campaign{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete campaign %d: %w", id, res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// TransitionStatus performs a guarded status change
func (r *CampaignRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	maps.Copy(updates, fields)

	var applied bool
	err := r.withWrite(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Campaign{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to move campaign %d to %s: %w", id, to, res.Error)
		}
		applied = res.RowsAffected > 0
		return nil
	})
	return applied, err
}

// SetContactTotals overwrites total_contacts and records the mapping used for the upload
func (r *CampaignRepositoryImpl) SetContactTotals(ctx context.Context, id uint, total int64, mapping models.FieldMapping) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).Where("id = ?", id).Updates(map[string]any{
			"total_contacts": total,
			"field_mapping":  mapping,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to set contact totals for campaign %d: %w", id, err)
		}
		return nil
	})
}

// IncrementSent atomically increments sent_count
func (r *CampaignRepositoryImpl) IncrementSent(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "sent_count")
}

// IncrementFailed atomically increments failed_count
func (r *CampaignRepositoryImpl) IncrementFailed(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "failed_count")
}

// IncrementReplied atomically increments replied_count
func (r *CampaignRepositoryImpl) IncrementReplied(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "replied_count")
}

func (r *CampaignRepositoryImpl) increment(ctx context.Context, id uint, column string) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("failed to increment %s for campaign %d: %w", column, id, err)
		}
		return nil
	})
}

// CompleteIfFinished marks the campaign completed when sent + failed has reached total
func (r *CampaignRepositoryImpl) CompleteIfFinished(ctx context.Context, id uint, at time.Time) (bool, error) {
	var applied bool
	err := r.withWrite(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Campaign{}).
			Where("id = ? AND status = ? AND sent_count + failed_count >= total_contacts", id, models.CampaignStatusRunning).
			Updates(map[string]any{
				"status":       models.CampaignStatusCompleted,
				"completed_at": at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete campaign %d: %w", id, res.Error)
		}
		applied = res.RowsAffected > 0
		return nil
	})
	return applied, err
}

func (r *CampaignRepositoryImpl) SaveDispatchProgress(ctx context.Context, id uint, cursor uint, finishedAt *time.Time) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		updates := map[string]any{
			"dispatch_cursor": gorm.Expr("GREATEST(dispatch_cursor, ?)", cursor),
		}
		if finishedAt != nil {
			updates["dispatched_at"] = *finishedAt
		}
		err := db.Model(&models.Campaign{}).Where("id = ?", id).UpdateColumns(updates).Error
		if err != nil {
			return fmt.Errorf("failed to save dispatch progress for campaign %d: %w", id, err)
		}
		return nil
	})
}

func (r *CampaignRepositoryImpl) ResetDispatchProgress(ctx context.Context, id uint) error {
	return r.withWrite(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).Where("id = ?", id).UpdateColumns(map[string]any{
			"dispatch_cursor": 0,
			"dispatched_at":   nil,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to reset dispatch progress for campaign %d: %w", id, err)
		}
		return nil
	})
}

// ListDueScheduled returns scheduled campaigns whose time has come, oldest first
func (r *CampaignRepositoryImpl) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	status := models.CampaignStatusScheduled
	return r.ByFilter(ctx, models.CampaignFilter{
		Status:         &status,
		ScheduledUntil: &now,
	}, "scheduled_at ASC, id ASC", limit, 0)
}

// ListByStatus returns every campaign in the given status
func (r *CampaignRepositoryImpl) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status}, "id ASC", 0, 0)
}

// Totals aggregates counters over all campaigns
func (r *CampaignRepositoryImpl) Totals(ctx context.Context) (*models.CampaignTotals, error) {
	db := r.getDB(ctx)

	var totals models.CampaignTotals
	err := db.Model(&models.Campaign{}).Select(`
		COUNT(*) AS campaigns,
		COUNT(*) FILTER (WHERE status = 'scheduled') AS scheduled,
		COUNT(*) FILTER (WHERE status = 'running') AS running,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COALESCE(SUM(total_contacts), 0) AS contact_total,
		COALESCE(SUM(sent_count), 0) AS sent_total,
		COALESCE(SUM(replied_count), 0) AS replied_total`).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign totals: %w", err)
	}

	return &totals, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRepositoryImpl) applyFilter(query *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Name != nil {
		query = query.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.ScheduledUntil != nil {
		query = query.Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", *filter.ScheduledUntil)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
