// Package scheduler runs the background loops: the scheduled-campaign trigger and the send workers
package scheduler

import (
	"context"
	"time"

	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
	"go.uber.org/zap"
)

const (
	tickLockKey = "scheduler:tick"
	dueBatch    = 100
)

// DueCampaignLister finds scheduled campaigns whose start time has passed
type DueCampaignLister interface {
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
}

// CampaignTrigger starts a scheduled campaign; false means it was no longer scheduled
type CampaignTrigger interface {
	TriggerScheduled(ctx context.Context, id uint) (bool, error)
}

// CampaignScheduler periodically checks for scheduled campaigns that are due and starts them
type CampaignScheduler struct {
	campaigns DueCampaignLister
	trigger   CampaignTrigger
	locker    *businessflow.KeyedLocker
	logger    *zap.Logger
	interval  time.Duration
}

func NewCampaignScheduler(
	campaigns DueCampaignLister,
	trigger CampaignTrigger,
	locker *businessflow.KeyedLocker,
	interval time.Duration,
	logger *zap.Logger,
) *CampaignScheduler {
	if interval <= 0 {
		interval = utils.DefaultSchedulerInterval
	}
	return &CampaignScheduler{
		campaigns: campaigns,
		trigger:   trigger,
		locker:    locker,
		logger:    logger.Named("scheduler"),
		interval:  interval,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop
// function that waits for the loop to exit
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// runOnce triggers every due campaign and returns how many were started.
// Only one instance runs a tick at a time.
func (s *CampaignScheduler) runOnce(ctx context.Context) int {
	release, ok, err := s.locker.TryLock(ctx, tickLockKey)
	if err != nil {
		s.logger.Warn("failed to acquire tick lock", zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	defer release()

	due, err := s.campaigns.ListDueScheduled(ctx, utils.UTCNow(), dueBatch)
	if err != nil {
		s.logger.Error("list due campaigns failed", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}
	s.logger.Debug("due campaigns found", zap.Int("count", len(due)))

	started := 0
	for _, c := range due {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.trigger.TriggerScheduled(ctx, c.ID)
		if err != nil {
			s.logger.Error("trigger scheduled campaign failed", zap.Uint("campaign_id", c.ID), zap.Error(err))
			continue
		}
		if ok {
			started++
			schedulerTriggered.Inc()
		}
	}
	return started
}
