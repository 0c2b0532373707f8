package scheduler

import (
	"context"
	"time"

	"github.com/amirphl/smsflow/app/queue"
	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SendWorkerPool consumes send tasks with a fixed number of workers.
// A task is retried in place with linear backoff; once every attempt
// failed the contact is marked failed so the campaign can still complete.
type SendWorkerPool struct {
	queue       queue.Queue
	sendFlow    businessflow.SendFlow
	concurrency int
	maxAttempts int
	taskTimeout time.Duration
	backoff     time.Duration
	logger      *zap.Logger
}

func NewSendWorkerPool(q queue.Queue, sendFlow businessflow.SendFlow, cfg config.DispatchConfig, logger *zap.Logger) *SendWorkerPool {
	p := &SendWorkerPool{
		queue:       q,
		sendFlow:    sendFlow,
		concurrency: cfg.WorkerConcurrency,
		maxAttempts: cfg.MaxAttempts,
		taskTimeout: cfg.TaskTimeout,
		backoff:     cfg.RetryBackoff,
		logger:      logger.Named("worker"),
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = utils.SendTaskMaxAttempts
	}
	if p.taskTimeout <= 0 {
		p.taskTimeout = utils.SendTaskTimeout
	}
	if p.backoff < 0 {
		p.backoff = utils.SendRetryBackoff
	}
	return p
}

// Run blocks until ctx is done
func (p *SendWorkerPool) Run(ctx context.Context) error {
	deliveries, err := p.queue.Deliveries(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for range p.concurrency {
		g.Go(func() error {
			p.work(gctx, deliveries)
			return nil
		})
	}
	p.logger.Info("send workers started", zap.Int("concurrency", p.concurrency))
	return g.Wait()
}

// Start runs the pool in the background and returns a stop function that waits for every worker
func (p *SendWorkerPool) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			p.logger.Error("send workers stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (p *SendWorkerPool) work(ctx context.Context, deliveries <-chan queue.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			p.handle(ctx, d)
		}
	}
}

func (p *SendWorkerPool) handle(ctx context.Context, d queue.Delivery) {
	task := d.Task
	log := p.logger.With(zap.Uint("campaign_id", task.CampaignID), zap.Uint("contact_id", task.ContactID))

	var lastErr error
	for attempt := max(task.Attempt, 1); attempt <= p.maxAttempts; attempt++ {
		if lastErr != nil {
			sendTaskRetries.Inc()
			if !p.sleep(ctx, attempt-max(task.Attempt, 1)) {
				p.settle(log, d.Nack(true))
				return
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
		status, err := p.sendFlow.ProcessSendTask(attemptCtx, task)
		cancel()

		switch {
		case err == nil:
			sendTasksProcessed.WithLabelValues(status.String()).Inc()
			p.settle(log, d.Ack())
			return
		case businessflow.IsNotFoundError(err):
			// Campaign or contact is gone; nothing left to do.
			log.Debug("dropping send task", zap.Error(err))
			sendTasksProcessed.WithLabelValues("dropped").Inc()
			p.settle(log, d.Ack())
			return
		case ctx.Err() != nil:
			p.settle(log, d.Nack(true))
			return
		}

		lastErr = err
		log.Warn("send attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	if lastErr == nil {
		// Redelivered with no attempts left.
		lastErr = businessflow.ErrAttemptsExhausted
	}
	if err := p.sendFlow.FailSendTask(ctx, task, lastErr); err != nil && !businessflow.IsNotFoundError(err) {
		log.Error("failed to record exhausted send task", zap.Error(err))
		p.settle(log, d.Nack(true))
		return
	}
	sendTasksProcessed.WithLabelValues("exhausted").Inc()
	p.settle(log, d.Ack())
}

// sleep waits backoff*n and reports false when ctx ended first
func (p *SendWorkerPool) sleep(ctx context.Context, n int) bool {
	delay := p.backoff * time.Duration(n)
	if delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *SendWorkerPool) settle(log *zap.Logger, err error) {
	if err != nil {
		log.Warn("failed to settle delivery", zap.Error(err))
	}
}
