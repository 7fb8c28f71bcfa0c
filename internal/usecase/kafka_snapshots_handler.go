package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ChainPull/internal/domain/models"
	domrepo "ChainPull/internal/domain/repository"
	pkgkafka "ChainPull/pkg/kafka"
)

// KafkaSnapshotsHandler consumes snapshot events and writes them to storage.
type KafkaSnapshotsHandler struct {
	topic   string
	storage domrepo.SnapshotStore
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)

func NewKafkaSnapshotsHandler(topic string, storage domrepo.SnapshotStore, metrics domrepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Ticker == "" || s.ScraperTimestamp == 0 {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("snapshot without ticker or timestamp")
	}
	// cycle to warehouse lag
	h.metrics.RecordLatency("ingest_e2e", time.Since(time.Unix(s.ScraperTimestamp, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent(BackendClickHouse, s.Ticker)
	return nil
}
