package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles the records of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads every registered topic in a consumer group. Each partition
// gets its own lane, so records are handled and committed in offset order.
// A record is committed once handled or parked on the DLQ topic.
type Consumer struct {
	cfg       ConsumerConfig
	log       *logger.Logger
	handlers  map[string]MessageHandler
	readers   map[string]Reader
	newReader func(topic string) Reader
	dlq       Writer
	slots     chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer validates cfg; readers are created by Start.
func NewConsumer(log *logger.Logger, cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	cfg = cfg.withDefaults()

	c := &Consumer{
		cfg:      cfg,
		log:      log.With(logger.String("component", "kafka_consumer")),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]Reader),
		slots:    make(chan struct{}, cfg.Workers),
	}
	c.newReader = func(topic string) Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
			MaxWait:  cfg.MaxWait,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	registerMetrics()
	return c, nil
}

// RegisterHandler adds h; a second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("kafka handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start opens one reader per topic and returns; reading runs until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("kafka: no handlers registered")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		c.wg.Add(1)
		go func(topic string, r Reader) {
			defer c.wg.Done()
			c.read(topic, r)
		}(topic, r)
	}

	c.log.Info("kafka consumer started",
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.cfg.Workers),
		logger.String("group", c.cfg.GroupID))
	return nil
}

// Stop cancels reading, waits for in-flight records and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Error("close kafka reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Error("close dlq writer", logger.Error(cerr))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return err
}

// read fetches records and fans them out to one lane per partition. Lanes
// are drained before read returns.
func (c *Consumer) read(topic string, r Reader) {
	lanes := make(map[int]chan kafka.Message)
	var running sync.WaitGroup
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		running.Wait()
	}()

	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("fetch kafka message", logger.String("topic", topic), logger.Error(err))
			if retry.Sleep(c.ctx, time.Second) != nil {
				return
			}
			continue
		}

		lane, ok := lanes[km.Partition]
		if !ok {
			lane = make(chan kafka.Message, c.cfg.BufferSize)
			lanes[km.Partition] = lane
			running.Add(1)
			go func(partition int, lane <-chan kafka.Message) {
				defer running.Done()
				depth := backlog.WithLabelValues(topic, strconv.Itoa(partition))
				for km := range lane {
					depth.Set(float64(len(lane)))
					c.handle(topic, r, km)
				}
			}(km.Partition, lane)
		}

		select {
		case lane <- km:
		case <-c.ctx.Done():
			return
		}
	}
}

// handle runs the topic handler under the retry policy, parks a failed
// record on the DLQ topic and commits its offset.
func (c *Consumer) handle(topic string, r Reader, km kafka.Message) {
	h, ok := c.handlers[topic]
	if !ok {
		return
	}

	select {
	case c.slots <- struct{}{}:
	case <-c.ctx.Done():
		return
	}
	start := time.Now()
	err := c.cfg.Retry.Do(c.ctx, func(ctx context.Context, _ int) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("handler panic: %v", p)
			}
		}()
		return h.Handle(ctx, km.Value)
	})
	<-c.slots
	handleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		handled.WithLabelValues(topic, "ok").Inc()
	case errors.Is(err, context.Canceled):
		return
	default:
		handled.WithLabelValues(topic, "failed").Inc()
		c.log.Error("kafka message failed",
			logger.String("topic", topic),
			logger.Int("partition", km.Partition),
			logger.Int64("offset", km.Offset),
			logger.Error(err))
		if !c.park(topic, km, err) {
			return
		}
	}
	c.commit(topic, r, km)
}

func (c *Consumer) park(topic string, km kafka.Message, cause error) bool {
	if c.dlq == nil {
		return false
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(topic)},
			{Key: "source_partition", Value: []byte(strconv.Itoa(km.Partition))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write dlq", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(topic string, r Reader, km kafka.Message) {
	policy := retry.Policy{MaxAttempts: 3, Delay: 50 * time.Millisecond, Factor: 2}
	err := policy.Do(context.Background(), func(ctx context.Context, _ int) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return r.CommitMessages(ctx, km)
	})
	if err != nil {
		c.log.Error("commit kafka offset",
			logger.String("topic", topic),
			logger.Int("partition", km.Partition),
			logger.Int64("offset", km.Offset),
			logger.Error(err))
	}
}
