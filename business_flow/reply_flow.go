package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/repository"
	"github.com/amirphl/smsflow/utils"
	"go.uber.org/zap"
)

// ReplyFlow attributes inbound messages to campaign contacts
type ReplyFlow interface {
	// RecordReply marks the latest unreplied contact with phone as replied and
	// returns it. It returns nil when no contact matches.
	RecordReply(ctx context.Context, phone string) (*models.CampaignContact, error)
}

// ReplyFlowImpl implements ReplyFlow
type ReplyFlowImpl struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.CampaignContactRepository
	tx           repository.Transactor
	logger       *zap.Logger
}

// NewReplyFlow creates a new reply flow instance
func NewReplyFlow(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.CampaignContactRepository,
	tx repository.Transactor,
	logger *zap.Logger,
) ReplyFlow {
	return &ReplyFlowImpl{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		tx:           tx,
		logger:       logger,
	}
}

func (r *ReplyFlowImpl) RecordReply(ctx context.Context, phone string) (*models.CampaignContact, error) {
	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return nil, nil
	}

	var matched *models.CampaignContact
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		contact, err := r.contactRepo.LatestUnrepliedByPhone(txCtx, phone)
		if err != nil {
			return fmt.Errorf("failed to look up contact: %w", err)
		}
		if contact == nil {
			return nil
		}

		now := utils.UTCNow()
		changed, err := r.contactRepo.MarkReplied(txCtx, contact.ID, now)
		if err != nil {
			return fmt.Errorf("failed to mark contact replied: %w", err)
		}
		// Another reply won the race.
		if !changed {
			return nil
		}
		if err := r.campaignRepo.IncrementReplied(txCtx, contact.CampaignID); err != nil {
			return fmt.Errorf("failed to update reply counter: %w", err)
		}

		contact.RepliedAt = &now
		matched = contact
		return nil
	})
	if err != nil {
		return nil, err
	}

	if matched != nil {
		repliesTotal.Inc()
		r.logger.Info("reply recorded",
			zap.Uint("campaign_id", matched.CampaignID),
			zap.Uint("contact_id", matched.ID),
		)
	}
	return matched, nil
}
