package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/sms-dispatch/internal/config"
	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/executor"
	"github.com/kursadbilgin/sms-dispatch/internal/handler"
	"github.com/kursadbilgin/sms-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/sms-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/sms-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"github.com/kursadbilgin/sms-dispatch/internal/provider"
	"github.com/kursadbilgin/sms-dispatch/internal/queue"
	"github.com/kursadbilgin/sms-dispatch/internal/quota"
	"github.com/kursadbilgin/sms-dispatch/internal/repository"
	"github.com/kursadbilgin/sms-dispatch/internal/service"
	"github.com/kursadbilgin/sms-dispatch/internal/supervisor"
	"github.com/kursadbilgin/sms-dispatch/internal/usage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "sms-dispatch"
	shutdownTimeout = 15 * time.Second
)

// tenantControls joins the usage tracker's view of a tenant with the kill
// switch stored next to its counters.
type tenantControls struct {
	*usage.Tracker
	*infraredis.UsageCounter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, serviceName)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("sms-dispatch stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	counter, err := infraredis.NewUsageCounter(rdb)
	if err != nil {
		return err
	}
	usageRepo := repository.NewGormUsageRepo(db)

	tracker, err := usage.NewTracker(counter, usageRepo, cfg.SMSMonthlyLimit, logger.Named("usage"))
	if err != nil {
		return err
	}
	reporter, err := usage.NewAsyncReporter(counter, usageRepo, cfg.UsageReportBuffer, logger.Named("usage"))
	if err != nil {
		return err
	}
	reporter.SetMetrics(metrics)

	gate := quota.NewUsageGate(tracker, logger.Named("quota"))

	pool, err := executor.NewPool(cfg.WorkerConcurrency, cfg.WorkerQueueSize, logger.Named("executor"))
	if err != nil {
		return err
	}
	pool.SetMetrics(metrics)

	sup, err := supervisor.New(pool, cfg.DispatchTimeout, logger.Named("supervisor"))
	if err != nil {
		return err
	}
	sup.SetMetrics(metrics)

	factory := provider.NewDefaultFactory(logger.Named("provider"))

	configManager, err := service.NewConfigManager(
		repository.NewGormSettingsRepo(db),
		factory,
		sup,
		cfg.SettingsKey,
		logger.Named("config"),
	)
	if err != nil {
		return err
	}
	configManager.SetMetrics(metrics)

	smsService, err := service.NewSMSService(configManager, gate, reporter, factory, sup, logger.Named("dispatch"))
	if err != nil {
		return err
	}
	smsService.SetMetrics(metrics)

	if cfg.SendRateLimitPerSec > 0 {
		throttle, err := infraredis.NewSendThrottle(rdb, cfg.SendRateLimitPerSec)
		if err != nil {
			return err
		}
		smsService.SetThrottle(throttle)
	}

	mq, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.DispatchQueue, logger.Named("rabbitmq"))
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	consumer := queue.NewRabbitMQConsumer(mq, cfg.ConsumerPrefetch, logger.Named("consumer"))
	consumer.SetMetrics(metrics)
	defer consumer.Close() //nolint:errcheck

	processor, err := service.NewDispatchProcessor(smsService, domain.DefaultAlarmRule, logger.Named("processor"))
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(logger.Named("http")),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware(handler.StatusOf))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.BrokerCheck(mq.Healthy),
	)
	if err := handler.RegisterSMSRoutes(app, handler.SMSRoutes{
		Service:   smsService,
		Settings:  configManager,
		Publisher: queue.NewRabbitMQPublisher(mq),
		Queue:     mq.QueueName(),
		Tenants:   tenantControls{Tracker: tracker, UsageCounter: counter},
	}); err != nil {
		return err
	}

	var watcher *service.SettingsWatcher
	if cfg.SettingsRefresh > 0 {
		watcher, err = service.NewSettingsWatcher(configManager, cfg.SettingsRefresh, logger.Named("config"))
		if err != nil {
			return err
		}
	}

	pool.Start()
	sup.Start()

	if err := configManager.Reload(ctx); err != nil {
		logger.Warn("initial sms provider configuration not applied", zap.Error(err))
	}

	// The reporter outlives the dispatch path so late unit reports are still
	// written.
	reporterCtx, stopReporter := context.WithCancel(context.Background())
	reporterDone := make(chan error, 1)
	go func() { reporterDone <- reporter.Run(reporterCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("sms-dispatch api started", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return consumer.Consume(gctx, mq.QueueName(), processor.Handle)
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	runErr := g.Wait()
	logger.Info("shutting down sms-dispatch")

	configManager.Shutdown()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		logger.Warn("worker pool did not drain before deadline", zap.Error(err))
	}

	stopReporter()
	if err := <-reporterDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("usage reporter stopped with error", zap.Error(err))
	}

	logger.Info("sms-dispatch stopped")
	return runErr
}
