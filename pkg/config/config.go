package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Namespace   string        `yaml:"namespace" default:"iv_history" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"30s"`
		AllowedOrigins  []string      `yaml:"allowed_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost" validate:"required"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"20s"`
		KeyPrefix  string        `yaml:"key_prefix"`
	} `yaml:"queue"`
	Backend struct {
		Type      string `yaml:"type" default:"clickhouse" validate:"oneof=clickhouse kafka file"`
		OutputDir string `yaml:"output_dir" default:"data"`
	} `yaml:"backend"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"chainpull"`
		Table            string        `yaml:"table" default:"option_snapshots"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"option_snapshots"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"chainpull-ingest"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			Retry      retry.Policy  `yaml:"retry"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
			ReadWait   time.Duration `yaml:"read_wait" default:"3s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Brokerage struct {
		BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
		Token     string        `yaml:"token"`
		Timeout   time.Duration `yaml:"timeout" default:"15s"`
		RateLimit float64       `yaml:"rate_limit" default:"5"` // requests per second
		Burst     float64       `yaml:"burst" default:"10"`
	} `yaml:"brokerage"`
	Universe struct {
		Path    string   `yaml:"path"`
		Symbols []string `yaml:"symbols"`
	} `yaml:"universe"`
	Scraper struct {
		Depth int          `yaml:"depth" default:"1" validate:"gte=1"`
		Retry retry.Policy `yaml:"retry"`
	} `yaml:"scraper"`
	Expiration struct {
		Retry      retry.Policy `yaml:"retry"`
		Daily      []string     `yaml:"daily" default:"[\"SPY\",\"QQQ\"]"`
		SemiWeekly []string     `yaml:"semi_weekly" default:"[\"IWM\"]"`
	} `yaml:"expiration"`
	Quarantine struct {
		Threshold       int64    `yaml:"threshold" default:"15" validate:"gte=1"`
		ScrapeFailScore int64    `yaml:"scrape_fail_score" default:"3" validate:"gte=1"`
		BadPriceScore   int64    `yaml:"bad_price_score" default:"1" validate:"gte=1"`
		PriceMinCents   int64    `yaml:"price_min_cents" default:"250" validate:"gte=0"`
		PriceMaxCents   int64    `yaml:"price_max_cents" default:"100000" validate:"gtfield=PriceMinCents"`
		Exempt          []string `yaml:"exempt" default:"[\"SPCE\",\"SNDL\",\"FCEL\",\"TLRY\",\"AMC\",\"BB\",\"NOK\"]"`
	} `yaml:"quarantine"`
	Schedule struct {
		Enabled  bool   `yaml:"enabled"`
		Timezone string `yaml:"timezone" default:"America/New_York"`
		Cycle    string `yaml:"cycle" default:"*/15 9-16 * * MON-FRI"`
		Audit    string `yaml:"audit" default:"0 8 * * MON-FRI"`
		Purge    string `yaml:"purge" default:"0 9 * * MON-FRI"`
	} `yaml:"schedule"`
	Notifier struct {
		WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
		Interval   time.Duration `yaml:"interval" default:"1m"`
		Threshold  int           `yaml:"threshold" default:"50"`
		Retry      retry.Policy  `yaml:"retry"`
	} `yaml:"notifier"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is honoured when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := c.setDefaults(); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CHAINPULL_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("CHAINPULL_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("CHAINPULL_REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("CHAINPULL_REDIS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHAINPULL_REDIS_PORT: %w", err)
		}
		c.Redis.Port = port
	}
	if v := os.Getenv("CHAINPULL_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CHAINPULL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHAINPULL_WORKERS: %w", err)
		}
		c.Queue.Workers = n
	}
	if v := os.Getenv("CHAINPULL_BROKERAGE_TOKEN"); v != "" {
		c.Brokerage.Token = v
	}
	if v := os.Getenv("CHAINPULL_BROKERAGE_URL"); v != "" {
		c.Brokerage.BaseURL = v
	}
	if v := os.Getenv("CHAINPULL_SYMBOLS"); v != "" {
		c.Universe.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("CHAINPULL_WEBHOOK_URL"); v != "" {
		c.Notifier.WebhookURL = v
	}
	return nil
}

func (c *Config) setDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	// retry policies share one type; each layer has its own defaults
	if c.Scraper.Retry.MaxAttempts == 0 {
		c.Scraper.Retry = retry.Constant(3, time.Second)
	}
	if c.Expiration.Retry.MaxAttempts == 0 {
		c.Expiration.Retry = retry.Constant(10, 10100*time.Millisecond)
	}
	if c.Notifier.Retry.MaxAttempts == 0 {
		c.Notifier.Retry = retry.Policy{MaxAttempts: 5, Delay: 2 * time.Second, Factor: 2, MaxDelay: 30 * time.Second}
	}
	if c.Kafka.Consumer.Retry.MaxAttempts == 0 {
		c.Kafka.Consumer.Retry = retry.Policy{MaxAttempts: 4, Delay: 50 * time.Millisecond, Factor: 2, MaxDelay: 2 * time.Second, Jitter: 0.5}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when backend.type is 'kafka'")
	}
	if c.Universe.Path == "" && len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("universe.path or universe.symbols is required")
	}
	if c.Schedule.Enabled {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}

// RetryPolicy returns the queue-level retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Queue.RetryLimit + 1,
		Delay:       c.Queue.RetryDelay,
		Factor:      2,
		MaxDelay:    6 * c.Queue.RetryDelay,
		Jitter:      0.1,
	}
}
