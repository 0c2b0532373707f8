package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/smsflow/app/queue"
	"github.com/amirphl/smsflow/repository"
	"github.com/amirphl/smsflow/utils"
	"go.uber.org/zap"
)

// TaskPublisher accepts send tasks for asynchronous delivery
type TaskPublisher interface {
	Enqueue(ctx context.Context, task queue.SendTask) error
}

// Dispatcher fans a running campaign out into one send task per pending contact
type Dispatcher interface {
	// Dispatch enqueues every pending contact in batches and returns how many were enqueued
	Dispatch(ctx context.Context, campaignID uint) (int, error)
	// DispatchAsync runs Dispatch in the background
	DispatchAsync(campaignID uint)
	// Wait blocks until background dispatches finish
	Wait()
	// Close cancels background dispatches and waits for them
	Close()
}

// DispatcherImpl implements Dispatcher
type DispatcherImpl struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.CampaignContactRepository
	publisher    TaskPublisher
	locker       *KeyedLocker
	batchSize    int
	logger       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a new dispatcher instance
func NewDispatcher(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.CampaignContactRepository,
	publisher TaskPublisher,
	locker *KeyedLocker,
	batchSize int,
	logger *zap.Logger,
) Dispatcher {
	if batchSize <= 0 {
		batchSize = utils.DispatchBatchSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DispatcherImpl{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		publisher:    publisher,
		locker:       locker,
		batchSize:    batchSize,
		logger:       logger.Named("dispatcher"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Dispatch walks pending contacts in id order, batchSize at a time, resuming after
// the campaign's dispatch cursor. The cursor is saved after every batch and once more
// when enumeration stops, so an interrupted dispatch can be resumed without enqueuing
// the whole campaign again. The campaign is re-checked before every batch so a
// deleted campaign stops enqueuing.
func (d *DispatcherImpl) Dispatch(ctx context.Context, campaignID uint) (int, error) {
	release, ok, err := d.locker.TryLock(ctx, campaignLockKey(campaignID))
	if err != nil {
		return 0, fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	if !ok {
		return 0, ErrCampaignBusy
	}
	defer release()

	campaign, err := d.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return 0, ErrCampaignDeleted
	}
	if campaign.DispatchedAt != nil {
		return 0, nil
	}

	start := campaign.DispatchCursor
	cursor := start
	enqueued, err := d.enqueuePending(ctx, campaignID, &cursor)

	var finishedAt *time.Time
	if err == nil {
		finishedAt = utils.ToPtr(utils.UTCNow())
	}
	if cursor != start || finishedAt != nil {
		// ctx may already be cancelled when enumeration was cut short
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), utils.DispatchProgressTimeout)
		if perr := d.campaignRepo.SaveDispatchProgress(saveCtx, campaignID, cursor, finishedAt); perr != nil && err == nil {
			err = perr
		}
		cancel()
	}
	if err != nil {
		return enqueued, err
	}

	d.logger.Info("campaign dispatched",
		zap.Uint("campaign_id", campaignID),
		zap.Uint("resumed_after", start),
		zap.Int("enqueued", enqueued),
	)
	return enqueued, nil
}

// enqueuePending publishes every pending contact after *cursor, advancing *cursor
// past each contact that was accepted by the queue
func (d *DispatcherImpl) enqueuePending(ctx context.Context, campaignID uint, cursor *uint) (int, error) {
	enqueued := 0
	for {
		exists, err := d.campaignRepo.ExistsByID(ctx, campaignID)
		if err != nil {
			return enqueued, fmt.Errorf("failed to check campaign: %w", err)
		}
		if !exists {
			d.logger.Info("campaign deleted during dispatch",
				zap.Uint("campaign_id", campaignID),
				zap.Int("enqueued", enqueued),
			)
			return enqueued, ErrCampaignDeleted
		}

		batch, err := d.contactRepo.PendingBatch(ctx, campaignID, *cursor, d.batchSize)
		if err != nil {
			return enqueued, fmt.Errorf("failed to load pending contacts: %w", err)
		}

		for _, contact := range batch {
			task := queue.SendTask{CampaignID: campaignID, ContactID: contact.ID, Attempt: 1}
			if err := d.publisher.Enqueue(ctx, task); err != nil {
				return enqueued, fmt.Errorf("failed to enqueue contact %d: %w", contact.ID, err)
			}
			*cursor = contact.ID
			enqueued++
			sendTasksEnqueued.Inc()
		}

		if len(batch) < d.batchSize {
			return enqueued, nil
		}
		if err := d.campaignRepo.SaveDispatchProgress(ctx, campaignID, *cursor, nil); err != nil {
			return enqueued, err
		}
	}
}

func (d *DispatcherImpl) DispatchAsync(campaignID uint) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, err := d.Dispatch(d.ctx, campaignID)
		switch {
		case err == nil, errors.Is(err, ErrCampaignDeleted):
		case errors.Is(err, ErrCampaignBusy):
			d.logger.Debug("campaign already being dispatched", zap.Uint("campaign_id", campaignID))
		default:
			d.logger.Error("dispatch failed",
				zap.Uint("campaign_id", campaignID),
				zap.Error(err),
			)
		}
	}()
}

func (d *DispatcherImpl) Wait() {
	d.wg.Wait()
}

func (d *DispatcherImpl) Close() {
	d.cancel()
	d.wg.Wait()
}
