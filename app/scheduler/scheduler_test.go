package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDue struct {
	mu        sync.Mutex
	campaigns []*models.Campaign
	err       error
	calls     int
}

func (f *fakeDue) ListDueScheduled(_ context.Context, now time.Time, _ int) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Campaign
	for _, c := range f.campaigns {
		if c.Status == models.CampaignStatusScheduled && !c.ScheduledAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// TriggerScheduled mimics the status guard of the campaign flow
func (f *fakeDue) TriggerScheduled(_ context.Context, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campaigns {
		if c.ID == id && c.Status == models.CampaignStatusScheduled {
			c.Status = models.CampaignStatusRunning
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDue) status(id uint) models.CampaignStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campaigns {
		if c.ID == id {
			return c.Status
		}
	}
	return ""
}

func scheduledAt(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestCampaignScheduler_RunOnce(t *testing.T) {
	due := &fakeDue{campaigns: []*models.Campaign{
		{ID: 1, Status: models.CampaignStatusScheduled, ScheduledAt: scheduledAt(-time.Minute)},
		{ID: 2, Status: models.CampaignStatusScheduled, ScheduledAt: scheduledAt(time.Hour)},
		{ID: 3, Status: models.CampaignStatusDraft, ScheduledAt: scheduledAt(-time.Minute)},
	}}
	s := NewCampaignScheduler(due, due, businessflow.NewKeyedLocker(nil, "", 0), time.Hour, zap.NewNop())

	assert.Equal(t, 1, s.runOnce(context.Background()))
	assert.Equal(t, models.CampaignStatusRunning, due.status(1))
	assert.Equal(t, models.CampaignStatusScheduled, due.status(2))
	assert.Equal(t, models.CampaignStatusDraft, due.status(3))

	// Already started: nothing to do on the next tick.
	assert.Equal(t, 0, s.runOnce(context.Background()))
}

func TestCampaignScheduler_SkipsTickWhileLocked(t *testing.T) {
	due := &fakeDue{campaigns: []*models.Campaign{
		{ID: 1, Status: models.CampaignStatusScheduled, ScheduledAt: scheduledAt(-time.Minute)},
	}}
	locker := businessflow.NewKeyedLocker(nil, "", 0)
	s := NewCampaignScheduler(due, due, locker, time.Hour, zap.NewNop())

	release, ok, err := locker.TryLock(context.Background(), tickLockKey)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 0, s.runOnce(context.Background()))
	assert.Equal(t, 0, due.calls)

	release()
	assert.Equal(t, 1, s.runOnce(context.Background()))
}

func TestCampaignScheduler_ListError(t *testing.T) {
	due := &fakeDue{err: errors.New("db down")}
	s := NewCampaignScheduler(due, due, businessflow.NewKeyedLocker(nil, "", 0), time.Hour, zap.NewNop())
	assert.Equal(t, 0, s.runOnce(context.Background()))
}

func TestCampaignScheduler_Start(t *testing.T) {
	due := &fakeDue{campaigns: []*models.Campaign{
		{ID: 1, Status: models.CampaignStatusScheduled, ScheduledAt: scheduledAt(-time.Second)},
	}}
	s := NewCampaignScheduler(due, due, businessflow.NewKeyedLocker(nil, "", 0), 10*time.Millisecond, zap.NewNop())

	stop := s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return due.status(1) == models.CampaignStatusRunning
	}, time.Second, 5*time.Millisecond)
	stop()
}
