package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/smsflow/app/queue"
	"github.com/amirphl/smsflow/app/services"
	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/repository"
	"github.com/amirphl/smsflow/utils"
	"go.uber.org/zap"
)

// SendFlow delivers one campaign message to one contact.
//
// Delivery is at-least-once: if the process dies after the carrier accepted a
// message but before the contact is marked sent, the task is delivered again
// and the contact receives a duplicate SMS.
type SendFlow interface {
	// ProcessSendTask renders and sends the message and records the terminal outcome.
	// A carrier error is recorded as a failed contact and is not returned. Returned
	// errors come from storage and may be retried.
	ProcessSendTask(ctx context.Context, task queue.SendTask) (models.ContactStatus, error)
	// FailSendTask marks the contact failed after every attempt was used up
	FailSendTask(ctx context.Context, task queue.SendTask, cause error) error
}

// SendFlowImpl implements SendFlow
type SendFlowImpl struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.CampaignContactRepository
	tx           repository.Transactor
	smsService   services.SMSService
	logger       *zap.Logger
}

// NewSendFlow creates a new send flow instance
func NewSendFlow(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.CampaignContactRepository,
	tx repository.Transactor,
	smsService services.SMSService,
	logger *zap.Logger,
) SendFlow {
	return &SendFlowImpl{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		tx:           tx,
		smsService:   smsService,
		logger:       logger.Named("worker"),
	}
}

func (s *SendFlowImpl) ProcessSendTask(ctx context.Context, task queue.SendTask) (models.ContactStatus, error) {
	campaign, err := s.campaignRepo.ByID(ctx, task.CampaignID)
	if err != nil {
		return "", fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return "", ErrCampaignDeleted
	}

	contact, err := s.contactRepo.ByID(ctx, task.ContactID)
	if err != nil {
		return "", fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil || contact.CampaignID != campaign.ID {
		return "", ErrContactNotFound
	}

	// Redelivered task for a contact that already has an outcome.
	if contact.Status.IsTerminal() {
		return contact.Status, nil
	}

	if err := s.contactRepo.IncrementAttempts(ctx, contact.ID); err != nil {
		return "", fmt.Errorf("failed to record attempt: %w", err)
	}

	body := RenderTemplate(campaign.MessageTemplate, contact)
	sendErr := s.smsService.Send(ctx, contact.PhoneNumber, body, nil)
	if sendErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		// Shutting down: leave the contact pending so the task is redelivered.
		return "", ctx.Err()
	}

	// The attempt deadline may have passed during the send; the outcome is still recorded.
	outcomeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), utils.OutcomeWriteTimeout)
	defer cancel()

	if sendErr != nil {
		terr := &TransportError{To: contact.PhoneNumber, Reason: sendErr.Error(), Err: sendErr}
		s.logger.Warn("send failed",
			zap.Uint("campaign_id", campaign.ID),
			zap.Uint("contact_id", contact.ID),
			zap.Error(terr),
		)
		if err := s.finish(outcomeCtx, campaign.ID, contact.ID, models.ContactStatusFailed, terr.Reason); err != nil {
			return "", err
		}
		return models.ContactStatusFailed, nil
	}

	if err := s.finish(outcomeCtx, campaign.ID, contact.ID, models.ContactStatusSent, ""); err != nil {
		return "", err
	}
	return models.ContactStatusSent, nil
}

func (s *SendFlowImpl) FailSendTask(ctx context.Context, task queue.SendTask, cause error) error {
	reason := "unknown error"
	if cause != nil {
		reason = ErrorMessage(cause)
	}
	exists, err := s.campaignRepo.ExistsByID(ctx, task.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to check campaign: %w", err)
	}
	if !exists {
		return ErrCampaignDeleted
	}
	return s.finish(ctx, task.CampaignID, task.ContactID, models.ContactStatusFailed, reason)
}

// finish moves a pending contact to status and bumps the matching campaign counter
// in one transaction. The campaign is completed when this was its last contact.
func (s *SendFlowImpl) finish(ctx context.Context, campaignID, contactID uint, status models.ContactStatus, reason string) error {
	var completed bool
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		now := utils.UTCNow()

		var (
			changed bool
			err     error
		)
		if status == models.ContactStatusSent {
			changed, err = s.contactRepo.MarkSent(txCtx, contactID, now)
		} else {
			changed, err = s.contactRepo.MarkFailed(txCtx, contactID, reason)
		}
		if err != nil {
			return fmt.Errorf("failed to update contact: %w", err)
		}
		if !changed {
			return nil
		}

		if status == models.ContactStatusSent {
			err = s.campaignRepo.IncrementSent(txCtx, campaignID)
		} else {
			err = s.campaignRepo.IncrementFailed(txCtx, campaignID)
		}
		if err != nil {
			return fmt.Errorf("failed to update campaign counters: %w", err)
		}

		completed, err = s.campaignRepo.CompleteIfFinished(txCtx, campaignID, now)
		if err != nil {
			return fmt.Errorf("failed to complete campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	messagesTotal.WithLabelValues(status.String()).Inc()
	if completed {
		s.logger.Info("campaign completed", zap.Uint("campaign_id", campaignID))
	}
	return nil
}
