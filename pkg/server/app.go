package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ChainPull/internal/usecase"
	"ChainPull/pkg/cache"
	pkgch "ChainPull/pkg/clickhouse"
	"ChainPull/pkg/config"
	xhttp "ChainPull/pkg/http"
	pkgkafka "ChainPull/pkg/kafka"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/queue"
	"ChainPull/pkg/scheduler"
)

// Components are the wired parts of the application. Optional parts are nil
// when the configuration does not need them.
type Components struct {
	Redis       *cache.RedisCache
	Queue       *queue.RedisQueue
	Dispatcher  *usecase.Dispatcher
	Maintenance *usecase.Maintenance
	Processor   *usecase.SnapshotProcessor
	ClickHouse  *pkgch.Client
	HTTP        *xhttp.Server
	Consumer    *pkgkafka.Consumer
	Scheduler   *scheduler.Scheduler
}

// App encapsulates the application lifecycle for every command.
type App struct {
	cfg *config.Config
	log *logger.Logger
	Components
	queueRunning bool
	httpRunning  bool
	cronRunning  bool
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *logger.Logger, c Components) *App {
	return &App{cfg: cfg, log: log, Components: c}
}

// Logger returns the root logger.
func (a *App) Logger() *logger.Logger { return a.log }

// Scrape enqueues one cycle and returns its report.
func (a *App) Scrape(ctx context.Context, force bool) (*usecase.CycleReport, error) {
	if err := a.startQueue(false); err != nil {
		return nil, err
	}
	return a.Dispatcher.Dispatch(ctx, usecase.DispatchOptions{Force: force})
}

// RunWorker runs the worker pool until interrupted.
func (a *App) RunWorker() error {
	if err := a.startQueue(true); err != nil {
		return err
	}
	a.wait()
	return nil
}

// RunServe runs the worker pool, the query API and the cron schedule until
// interrupted.
func (a *App) RunServe() error {
	if err := a.startQueue(true); err != nil {
		return err
	}
	if a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		a.httpRunning = true
	}
	if a.cfg.Schedule.Enabled && a.Scheduler != nil {
		n, err := a.registerSchedule()
		if err != nil {
			return err
		}
		a.log.Info("schedule registered", logger.Int("jobs", n), logger.String("timezone", a.cfg.Schedule.Timezone))
		a.Scheduler.Start()
		a.cronRunning = true
	}
	a.wait()
	return nil
}

// RunIngest consumes snapshot events into ClickHouse until interrupted.
func (a *App) RunIngest() error {
	if a.Consumer == nil {
		return errors.New("ingest needs kafka.brokers and a clickhouse store")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Consumer.Start(ctx); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	a.wait()
	return nil
}

func (a *App) registerSchedule() (int, error) {
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{a.cfg.Schedule.Cycle, scheduler.JobFunc{JobName: "scrape_cycle", Fn: a.scheduledCycle}},
		{a.cfg.Schedule.Audit, scheduler.JobFunc{JobName: "quarantine_audit", Fn: func(ctx context.Context) error {
			_, err := a.Maintenance.AuditQuarantine(ctx)
			return err
		}}},
		{a.cfg.Schedule.Purge, scheduler.JobFunc{JobName: "expiration_purge", Fn: func(ctx context.Context) error {
			_, err := a.Maintenance.PurgeExpirations(ctx, false)
			return err
		}}},
	}
	n := 0
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if err := a.Scheduler.AddJob(j.spec, j.job); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (a *App) scheduledCycle(ctx context.Context) error {
	_, err := a.Scrape(ctx, false)
	if errors.Is(err, usecase.ErrMarketClosed) || errors.Is(err, usecase.ErrCycleInProgress) {
		a.log.Info("cycle skipped", logger.String("reason", err.Error()))
		return nil
	}
	return err
}

// startQueue starts the queue once. Without consume it only publishes.
func (a *App) startQueue(consume bool) error {
	if a.queueRunning {
		return nil
	}
	start := a.Queue.StartPublishing
	if consume {
		start = a.Queue.Start
	}
	if err := start(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	a.queueRunning = true
	return nil
}

func (a *App) wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	a.log.Info("shutdown signal received")
}

// Shutdown gracefully stops all services and closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.cronRunning {
		if err := a.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if a.httpRunning {
		if err := a.HTTP.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
		}
	}
	if a.queueRunning {
		if err := a.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	if a.Processor != nil {
		a.Processor.Close()
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		a.log.Warn("shutdown finished with errors", logger.Error(err))
	} else {
		a.log.Info("shutdown complete")
	}
	a.log.DetachDigest()
	return err
}
