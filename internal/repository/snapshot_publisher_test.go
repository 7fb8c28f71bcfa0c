package repository

import (
	"context"
	"encoding/json"
	"testing"

	"ChainPull/internal/domain/models"
	pkgkafka "ChainPull/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaSnapshotPublisher(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaSnapshotPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "option_snapshots")

	snap := sampleSnapshot()
	require.NoError(t, p.PublishBatch(context.Background(), []*models.Snapshot{snap, nil}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "option_snapshots", w.msgs[0].Topic)
	assert.Equal(t, "SPY", string(w.msgs[0].Key))

	var decoded models.Snapshot
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, snap.Ticker, decoded.Ticker)
	assert.Equal(t, snap.NearTheMoney, decoded.NearTheMoney)

	require.NoError(t, p.Publish(context.Background(), snap))
	assert.Len(t, w.msgs, 2)
	assert.NoError(t, p.Close())
}
