package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/smsflow/app/queue"
	"github.com/amirphl/smsflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_EnqueuesEveryPendingContactOnce(t *testing.T) {
	h := newHarness(t)
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", phoneList(250)...)

	n, err := h.dispatcher.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	tasks := h.publisher.Tasks()
	require.Len(t, tasks, 250)
	for i, task := range tasks {
		assert.Equal(t, c.ID, task.CampaignID)
		assert.Equal(t, 1, task.Attempt)
		if i > 0 {
			assert.Greater(t, task.ContactID, tasks[i-1].ContactID)
		}
	}
}

func TestDispatch_ProgressDuringDispatchDoesNotSkip(t *testing.T) {
	h := newHarness(t)
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", phoneList(250)...)

	// Workers finish contacts while enumeration is still running.
	h.publisher.onEnqueue = func(task queue.SendTask) {
		_, _ = h.contactRepo.MarkSent(context.Background(), task.ContactID, time.Now())
	}

	n, err := h.dispatcher.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	seen := map[uint]bool{}
	for _, task := range h.publisher.Tasks() {
		assert.False(t, seen[task.ContactID], "contact %d enqueued twice", task.ContactID)
		seen[task.ContactID] = true
	}
	assert.Len(t, seen, 250)
}

func TestDispatch_StopsWhenCampaignDeleted(t *testing.T) {
	h := newHarness(t)
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", phoneList(250)...)

	h.publisher.onEnqueue = func(task queue.SendTask) {
		if len(h.publisher.Tasks()) == 100 {
			_, _ = h.campaignRepo.Delete(context.Background(), c.ID)
		}
	}

	n, err := h.dispatcher.Dispatch(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrCampaignDeleted)
	assert.True(t, IsNotFoundError(err))
	assert.Equal(t, 100, n)
	assert.Len(t, h.publisher.Tasks(), 100)
}

func TestDispatch_SkipsNonPendingContacts(t *testing.T) {
	h := newHarness(t)
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", phoneList(3)...)
	contacts := h.store.contactsOf(c.ID)
	_, err := h.contactRepo.MarkFailed(context.Background(), contacts[1].ID, "x")
	require.NoError(t, err)

	n, err := h.dispatcher.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	tasks := h.publisher.Tasks()
	assert.Equal(t, contacts[0].ID, tasks[0].ContactID)
	assert.Equal(t, contacts[2].ID, tasks[1].ContactID)
}

func TestDispatch_BusyCampaign(t *testing.T) {
	h := newHarness(t)
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", phoneList(2)...)

	release, ok, err := h.locker.TryLock(context.Background(), campaignLockKey(c.ID))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.dispatcher.Dispatch(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrCampaignBusy)
	assert.Empty(t, h.publisher.Tasks())

	release()
	n, err := h.dispatcher.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDispatch_PublisherError(t *testing.T) {
	h := newHarness(t)
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", phoneList(2)...)
	h.publisher.err = errors.New("broker unavailable")

	n, err := h.dispatcher.Dispatch(context.Background(), c.ID)
	require.Error(t, err)
	assert.Equal(t, 0, n)

	// The lock is released after a failed dispatch.
	_, ok, err := h.locker.TryLock(context.Background(), campaignLockKey(c.ID))
	require.NoError(t, err)
	assert.True(t, ok)
}
