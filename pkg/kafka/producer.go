package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer is the part of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is one record to publish. Value is sent as is when it is []byte
// or string and JSON-encoded otherwise.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer publishes JSON records.
type Producer struct {
	w     Writer
	codec string
}

// NewProducer connects a hash-balanced writer to cfg.Brokers.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	return NewProducerWithWriter(cfg.writer(), cfg.Compression), nil
}

// NewProducerWithWriter wraps w; codec only labels metrics.
func NewProducerWithWriter(w Writer, codec string) *Producer {
	registerMetrics()
	return &Producer{w: w, codec: codec}
}

// Publish sends one record.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch sends records in one write. Nothing is sent if any value
// fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, batch []Message) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now()
	out := make([]kafka.Message, len(batch))
	size := 0
	for i, m := range batch {
		b, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("encode %s record %d: %w", topic, i, err)
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: b, Time: now}
		size += len(b)
	}

	err := p.w.WriteMessages(ctx, out...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	published.WithLabelValues(topic, p.codec, result).Add(float64(len(out)))
	publishedBytes.WithLabelValues(topic).Add(float64(size))
	publishLatency.WithLabelValues(topic).Observe(time.Since(now).Seconds())
	if err != nil {
		return fmt.Errorf("write %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.w.Close()
}

func encodeValue(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	}
	return json.Marshal(v)
}
