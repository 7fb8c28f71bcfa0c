package di

import (
	"context"
	"fmt"
	"time"

	"ChainPull/internal/domain/repository"
	"ChainPull/internal/handler/api"
	internalrepo "ChainPull/internal/repository"
	"ChainPull/internal/service/brokerage"
	"ChainPull/internal/service/calendar"
	"ChainPull/internal/service/expiration"
	"ChainPull/internal/service/notifier"
	"ChainPull/internal/service/quarantine"
	"ChainPull/internal/service/scraper"
	"ChainPull/internal/service/universe"
	"ChainPull/internal/usecase"
	"ChainPull/pkg/cache"
	pkgch "ChainPull/pkg/clickhouse"
	"ChainPull/pkg/config"
	xhttp "ChainPull/pkg/http"
	pkgkafka "ChainPull/pkg/kafka"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/metrics"
	"ChainPull/pkg/queue"
	"ChainPull/pkg/scheduler"
	"ChainPull/pkg/server"
)

// ProvideLogger creates the root logger. When a webhook is configured the
// error digest is attached before any component logger is derived.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Notifier.WebhookURL != "" {
		l.AttachDigest(logger.DigestConfig{
			Interval:  cfg.Notifier.Interval,
			Threshold: cfg.Notifier.Threshold,
			Topic:     cfg.Namespace + " errors",
			Publisher: notifier.New(cfg.Notifier.WebhookURL, cfg.Notifier.Retry),
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects to Redis. Keys live under the namespace.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.DialRedis(context.Background(), cache.RedisConfig{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		PoolSize:  cfg.Redis.PoolSize,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

func ProvideCalendar() (repository.Calendar, error) {
	c, err := calendar.New()
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	return c, nil
}

// ProvideMarketData creates the throttled brokerage client.
func ProvideMarketData(cfg *config.Config, log *logger.Logger) (repository.MarketData, error) {
	c, err := brokerage.New(brokerage.Config{
		BaseURL:   cfg.Brokerage.BaseURL,
		Token:     cfg.Brokerage.Token,
		Timeout:   cfg.Brokerage.Timeout,
		RateLimit: cfg.Brokerage.RateLimit,
		Burst:     cfg.Brokerage.Burst,
	}, log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func ProvideUniverse(cfg *config.Config) repository.Universe {
	return universe.New(cfg.Universe.Path, cfg.Universe.Symbols)
}

func ProvideExpirationCache(
	cfg *config.Config,
	rc *cache.RedisCache,
	data repository.MarketData,
	cal repository.Calendar,
	log *logger.Logger,
) *expiration.Cache {
	return expiration.NewCache(
		rc,
		expiration.NewClassifier(cfg.Expiration.Daily, cfg.Expiration.SemiWeekly),
		expiration.NewChainResolver(data, cal),
		cfg.Expiration.Retry,
		log,
	)
}

func ProvideQuarantineManager(cfg *config.Config, rc *cache.RedisCache, m repository.Metrics, log *logger.Logger) *quarantine.Manager {
	return quarantine.NewManager(rc, quarantine.Policy{
		Threshold:       cfg.Quarantine.Threshold,
		ScrapeFailScore: cfg.Quarantine.ScrapeFailScore,
		BadPriceScore:   cfg.Quarantine.BadPriceScore,
		PriceMinCents:   cfg.Quarantine.PriceMinCents,
		PriceMaxCents:   cfg.Quarantine.PriceMaxCents,
		Exempt:          cfg.Quarantine.Exempt,
	}, m, log)
}

func ProvideScraper(cfg *config.Config, data repository.MarketData, cal repository.Calendar, log *logger.Logger) *scraper.Scraper {
	return scraper.New(data, cal, cfg.Scraper.Retry, cfg.Scraper.Depth, log)
}

// ProvideClickHouseClient connects to ClickHouse unless nothing reads or
// writes it (file backend with the query API disabled).
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type == usecase.BackendFile && !cfg.Server.Enabled {
		return nil, nil
	}
	c := cfg.ClickHouse
	client, err := pkgch.Open(context.Background(), pkgch.Config{
		Host:         c.Host,
		Port:         c.Port,
		Database:     c.Database,
		User:         c.User,
		Password:     c.Password,
		HTTP:         c.UseHTTP,
		AsyncInsert:  c.AsyncInsert,
		WaitForAsync: c.WaitForAsync,
		MaxExecution: c.MaxExecutionTime,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSnapshotStore creates the snapshot table if needed.
func ProvideSnapshotStore(client *pkgch.Client, cfg *config.Config) (*internalrepo.ClickHouseSnapshotStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSnapshotStore(client.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer for the kafka backend.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		Linger:       cfg.Kafka.Producer.Linger,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSnapshotProcessor routes snapshots to the configured backend.
func ProvideSnapshotProcessor(
	cfg *config.Config,
	store *internalrepo.ClickHouseSnapshotStore,
	producer *pkgkafka.Producer,
	m repository.Metrics,
) (*usecase.SnapshotProcessor, error) {
	switch cfg.Backend.Type {
	case usecase.BackendKafka:
		pub := internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
		return usecase.NewSnapshotProcessor(nil, pub, nil, m, usecase.BackendKafka), nil
	case usecase.BackendFile:
		w := internalrepo.NewFileRecordWriter(cfg.Backend.OutputDir)
		return usecase.NewSnapshotProcessor(nil, nil, w, m, usecase.BackendFile), nil
	default:
		if store == nil {
			return nil, fmt.Errorf("clickhouse backend without a snapshot store")
		}
		return usecase.NewSnapshotProcessor(store, nil, nil, m, usecase.BackendClickHouse), nil
	}
}

func ProvideScrapeTickerJob(
	exps *expiration.Cache,
	s *scraper.Scraper,
	processor *usecase.SnapshotProcessor,
	manager *quarantine.Manager,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.ScrapeTickerJob {
	return usecase.NewScrapeTickerJob(exps, s, processor, manager, m, log)
}

// ProvideQueue creates the job queue with the scrape job registered.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, job *usecase.ScrapeTickerJob, m repository.Metrics, log *logger.Logger) *queue.RedisQueue {
	prefix := cfg.Queue.KeyPrefix
	if prefix == "" {
		prefix = cfg.Namespace + ":queue"
	}
	q := queue.NewRedisQueue(log, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(prefix), queue.WithDepthRecorder(m))
	q.Register(job)
	return q
}

func ProvideDispatcher(
	cfg *config.Config,
	u repository.Universe,
	cal repository.Calendar,
	manager *quarantine.Manager,
	q *queue.RedisQueue,
	rc *cache.RedisCache,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Dispatcher {
	return usecase.NewDispatcher(u, cal, manager, q, rc, cfg.RetryPolicy(), m, log)
}

func ProvideMaintenance(
	u repository.Universe,
	cal repository.Calendar,
	exps *expiration.Cache,
	manager *quarantine.Manager,
	s *scraper.Scraper,
	log *logger.Logger,
) *usecase.Maintenance {
	return usecase.NewMaintenance(u, cal, exps, manager, s, log)
}

// ProvideHTTPServer serves the query API and metrics.
func ProvideHTTPServer(cfg *config.Config, store *internalrepo.ClickHouseSnapshotStore, log *logger.Logger) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	var routes xhttp.Routes
	if store != nil {
		routes = api.NewSnapshotsEchoHandler(log, usecase.NewSnapshotQuery(store, cfg.Server.CacheTTL))
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, routes,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)
}

// ProvideKafkaConsumer creates the ingest consumer when brokers and a
// snapshot store are available.
func ProvideKafkaConsumer(
	cfg *config.Config,
	store *internalrepo.ClickHouseSnapshotStore,
	m repository.Metrics,
	log *logger.Logger,
) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 || store == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log, pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.Consumer.GroupID,
		Workers:    cfg.Kafka.Consumer.Workers,
		BufferSize: cfg.Kafka.Consumer.BufferSize,
		Retry:      cfg.Kafka.Consumer.Retry,
		DLQTopic:   cfg.Kafka.Consumer.DLQTopic,
		MinBytes:   cfg.Kafka.Consumer.MinBytes,
		MaxBytes:   cfg.Kafka.Consumer.MaxBytes,
		MaxWait:    cfg.Kafka.Consumer.ReadWait,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaSnapshotsHandler(cfg.Kafka.Topic, store, m))
	return consumer, nil
}

// ProvideScheduler creates the cron scheduler in the configured timezone.
func ProvideScheduler(cfg *config.Config, log *logger.Logger) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}
	return scheduler.New(log, loc), nil
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	rc *cache.RedisCache,
	q *queue.RedisQueue,
	dispatcher *usecase.Dispatcher,
	maintenance *usecase.Maintenance,
	processor *usecase.SnapshotProcessor,
	chClient *pkgch.Client,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	sched *scheduler.Scheduler,
) *server.App {
	return server.New(cfg, log, server.Components{
		Redis:       rc,
		Queue:       q,
		Dispatcher:  dispatcher,
		Maintenance: maintenance,
		Processor:   processor,
		ClickHouse:  chClient,
		HTTP:        httpServer,
		Consumer:    consumer,
		Scheduler:   sched,
	})
}
