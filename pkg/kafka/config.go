package kafka

import (
	"time"

	"ChainPull/pkg/retry"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig is the writer setup for the snapshot topic. Messages are
// always partitioned by key so every ticker keeps its order.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int // -1 waits for all in-sync replicas
	Compression  string
	MaxAttempts  int
	Linger       time.Duration
	BatchSize    int
	BatchBytes   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

func (c ProducerConfig) writer() *kafka.Writer {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Linger <= 0 {
		c.Linger = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = 1 << 20
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(c.RequiredAcks),
		Compression:  compressionCodec(c.Compression),
		MaxAttempts:  c.MaxAttempts,
		BatchTimeout: c.Linger,
		BatchSize:    c.BatchSize,
		BatchBytes:   int64(c.BatchBytes),
		WriteTimeout: c.WriteTimeout,
		ReadTimeout:  c.ReadTimeout,
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

// ConsumerConfig is the group reader setup. Messages of one partition are
// handled one at a time in offset order; Workers caps how many partitions
// are handled concurrently.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	BufferSize int // per-partition backlog
	Retry      retry.Policy
	DLQTopic   string
	MinBytes   int
	MaxBytes   int
	MaxWait    time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.GroupID == "" {
		c.GroupID = "chainpull"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 16
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = retry.Policy{MaxAttempts: 4, Delay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, Factor: 2, Jitter: 0.5}
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	return c
}
