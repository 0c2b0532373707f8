package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/smsflow/app/queue"
	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSendFlow returns the queued errors for a contact in order, then succeeds
type scriptedSendFlow struct {
	mu       sync.Mutex
	script   map[uint][]error
	calls    map[uint]int
	failed   map[uint]error
	finished map[uint]bool
}

func newScriptedSendFlow() *scriptedSendFlow {
	return &scriptedSendFlow{
		script:   map[uint][]error{},
		calls:    map[uint]int{},
		failed:   map[uint]error{},
		finished: map[uint]bool{},
	}
}

func (f *scriptedSendFlow) ProcessSendTask(_ context.Context, task queue.SendTask) (models.ContactStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[task.ContactID]++
	if errs := f.script[task.ContactID]; len(errs) > 0 {
		f.script[task.ContactID] = errs[1:]
		if errs[0] != nil {
			return "", errs[0]
		}
	}
	f.finished[task.ContactID] = true
	return models.ContactStatusSent, nil
}

func (f *scriptedSendFlow) FailSendTask(_ context.Context, task queue.SendTask, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[task.ContactID] = cause
	f.finished[task.ContactID] = true
	return nil
}

func (f *scriptedSendFlow) done(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[id]
}

func (f *scriptedSendFlow) callCount(id uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *scriptedSendFlow) failure(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed[id]
}

func startPool(t *testing.T, flow businessflow.SendFlow) *queue.MemoryQueue {
	t.Helper()
	q := queue.NewMemoryQueue(100)
	pool := NewSendWorkerPool(q, flow, config.DispatchConfig{
		WorkerConcurrency: 4,
		MaxAttempts:       3,
		TaskTimeout:       time.Second,
		RetryBackoff:      time.Millisecond,
	}, zap.NewNop())
	stop := pool.Start(context.Background())
	t.Cleanup(func() {
		stop()
		_ = q.Close()
	})
	return q
}

func enqueue(t *testing.T, q queue.Queue, contactIDs ...uint) {
	t.Helper()
	for _, id := range contactIDs {
		require.NoError(t, q.Enqueue(context.Background(), queue.SendTask{CampaignID: 1, ContactID: id, Attempt: 1}))
	}
}

func TestSendWorkerPool_ProcessesEveryTask(t *testing.T) {
	flow := newScriptedSendFlow()
	q := startPool(t, flow)
	enqueue(t, q, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	assert.Eventually(t, func() bool {
		for id := uint(1); id <= 10; id++ {
			if !flow.done(id) {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
	for id := uint(1); id <= 10; id++ {
		assert.Equal(t, 1, flow.callCount(id))
	}
}

func TestSendWorkerPool_RetriesStorageErrors(t *testing.T) {
	flow := newScriptedSendFlow()
	flow.script[1] = []error{errors.New("deadlock"), errors.New("deadlock")}
	q := startPool(t, flow)
	enqueue(t, q, 1)

	assert.Eventually(t, func() bool { return flow.done(1) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, flow.callCount(1))
	assert.NoError(t, flow.failure(1))
}

func TestSendWorkerPool_ExhaustedAttemptsFailContact(t *testing.T) {
	flow := newScriptedSendFlow()
	cause := errors.New("connection refused")
	flow.script[1] = []error{cause, cause, cause}
	q := startPool(t, flow)
	enqueue(t, q, 1)

	assert.Eventually(t, func() bool { return flow.done(1) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, flow.callCount(1))
	assert.ErrorIs(t, flow.failure(1), cause)
}

func TestSendWorkerPool_DropsMissingCampaign(t *testing.T) {
	flow := newScriptedSendFlow()
	flow.script[1] = []error{businessflow.ErrCampaignDeleted}
	q := startPool(t, flow)
	enqueue(t, q, 1, 2)

	assert.Eventually(t, func() bool { return flow.done(2) && flow.callCount(1) == 1 }, time.Second, 5*time.Millisecond)
	// Give contact 1 a chance to be (wrongly) retried.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, flow.callCount(1))
	assert.False(t, flow.done(1))
	assert.NoError(t, flow.failure(1))
}
