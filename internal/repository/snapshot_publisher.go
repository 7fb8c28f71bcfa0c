package repository

import (
	"context"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
	pkgkafka "ChainPull/pkg/kafka"
)

// KafkaSnapshotPublisher publishes snapshots as JSON events keyed by ticker.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ repository.Publisher = (*KafkaSnapshotPublisher)(nil)

// NewKafkaSnapshotPublisher creates Kafka publisher.
func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, s *models.Snapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Ticker), s)
}

func (p *KafkaSnapshotPublisher) PublishBatch(ctx context.Context, snaps []*models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(snaps))
	for _, s := range snaps {
		if s == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(s.Ticker), Value: s})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSnapshotPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
