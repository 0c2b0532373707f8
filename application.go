package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/smsflow/app/handlers"
	"github.com/amirphl/smsflow/app/queue"
	"github.com/amirphl/smsflow/app/router"
	"github.com/amirphl/smsflow/app/scheduler"
	"github.com/amirphl/smsflow/app/services"
	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// runOptions selects which parts of the process run
type runOptions struct {
	api     bool
	workers bool
}

// Application represents the main application structure
type Application struct {
	config     *config.ProductionConfig
	logger     *zap.Logger
	db         *gorm.DB
	cache      *redis.Client
	queue      queue.Queue
	router     router.Router
	dispatcher businessflow.Dispatcher
	stopFuncs  []func()
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity.
// It returns a nil client when redis is disabled.
func initializeCache(cfg config.CacheConfig, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// initializeQueue opens the send task queue selected by QUEUE_DRIVER
func initializeQueue(cfg config.QueueConfig, logger *zap.Logger) (queue.Queue, error) {
	switch cfg.Driver {
	case "amqp":
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.QueueName, cfg.Prefetch, logger.Named("queue"))
		if err != nil {
			return nil, err
		}
		logger.Info("AMQP queue ready", zap.String("queue", cfg.QueueName))
		return q, nil
	default:
		return queue.NewMemoryQueue(cfg.Buffer), nil
	}
}

// initializeApplication initializes the main application components
func initializeApplication(ctx context.Context, cfg *config.ProductionConfig, logger *zap.Logger, opts runOptions) (*Application, error) {
	app := &Application{config: cfg, logger: logger}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}
	app.cache = rc
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(ctx, rc, cfg.Cache.CleanupInterval, logger))
	}

	q, err := initializeQueue(cfg.Queue, logger)
	if err != nil {
		for _, stop := range app.stopFuncs {
			stop()
		}
		_ = app.closeResources()
		return nil, err
	}
	app.queue = q

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewCampaignContactRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	tx := repository.NewTransactor(db)

	// Initialize services
	smsService := services.NewSMSService(&cfg.SMS)
	storage := services.NewLocalMediaStorage(cfg.Storage.RootDir, cfg.Storage.PublicBaseURL)
	downloader := services.NewHTTPMediaDownloader(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.Webhook.MediaTimeout)
	locker := businessflow.NewKeyedLocker(rc, cfg.Cache.RedisPrefix, cfg.Cache.LockTTL)

	// Initialize flows
	app.dispatcher = businessflow.NewDispatcher(campaignRepo, contactRepo, q, locker, cfg.Dispatch.BatchSize, logger)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, contactRepo, tx, app.dispatcher, logger)
	sendFlow := businessflow.NewSendFlow(campaignRepo, contactRepo, tx, smsService, logger)
	replyFlow := businessflow.NewReplyFlow(campaignRepo, contactRepo, tx, logger)
	conversationFlow := businessflow.NewConversationFlow(
		conversationRepo,
		messageRepo,
		replyFlow,
		smsService,
		storage,
		downloader,
		cfg.Webhook,
		logger,
	)

	if opts.workers {
		workers := scheduler.NewSendWorkerPool(q, sendFlow, cfg.Dispatch, logger)
		app.stopFuncs = append(app.stopFuncs, workers.Start(ctx))

		sched := scheduler.NewCampaignScheduler(campaignRepo, campaignFlow, locker, cfg.Dispatch.SchedulerInterval, logger)
		app.stopFuncs = append(app.stopFuncs, sched.Start(ctx))
	}

	// Finish dispatches cut short by a shutdown or crash. In-memory tasks are lost on
	// restart, so there every pending contact is enqueued again.
	if opts.workers || q.Durable() {
		n, err := campaignFlow.RecoverRunning(ctx, !q.Durable())
		if err != nil {
			logger.Error("Failed to recover running campaigns", zap.Error(err))
		} else if n > 0 {
			logger.Info("Recovered running campaigns", zap.Int("campaigns", n), zap.Bool("requeue", !q.Durable()))
		}
	}
	if !opts.workers && !q.Durable() {
		logger.Warn("Running without workers on the memory queue; started campaigns will not be sent by this process")
	}

	if opts.api {
		campaignHandler := handlers.NewCampaignHandler(campaignFlow, logger)
		conversationHandler := handlers.NewConversationHandler(conversationFlow, logger)
		webhookHandler := handlers.NewWebhookHandler(conversationFlow, logger)

		app.router = router.NewFiberRouter(campaignHandler, conversationHandler, webhookHandler, cfg, logger)
		app.router.SetupRoutes()
	}

	return app, nil
}

// Shutdown stops the HTTP server, then dispatches and background loops, then closes connections
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if a.router != nil {
		if err := a.router.GetApp().ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	// Stop in reverse start order: scheduler, workers, cache monitor
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Application) closeResources() error {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queue close: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database close: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
