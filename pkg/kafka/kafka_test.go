package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type commit struct {
	partition int
	offset    int64
}

// scriptedReader returns its records in order, then blocks until ctx ends.
type scriptedReader struct {
	mu        sync.Mutex
	records   []kafka.Message
	committed []commit
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.records) > 0 {
		km := r.records[0]
		r.records = r.records[1:]
		r.mu.Unlock()
		return km, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, commit{m.Partition, m.Offset})
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) commits() []commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]commit(nil), r.committed...)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string                            { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestProducer_PublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip")

	err := p.PublishBatch(context.Background(), "snapshots", []Message{
		{Key: []byte("SPY"), Value: map[string]int{"n": 1}},
		{Key: []byte("QQQ"), Value: "raw"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "snapshots", w.msgs[0].Topic)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	require.NoError(t, p.PublishBatch(context.Background(), "snapshots", nil))
	assert.Len(t, w.msgs, 2)
}

func TestProducer_WriteError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "gzip")
	err := p.Publish(context.Background(), "snapshots", nil, "x")
	assert.ErrorContains(t, err, "broker down")
}

func TestProducer_EncodeErrorSendsNothing(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip")
	err := p.PublishBatch(context.Background(), "snapshots", []Message{
		{Value: "ok"},
		{Value: make(chan int)},
	})
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestProducerConfig_Writer(t *testing.T) {
	w := ProducerConfig{Brokers: []string{"localhost:9092"}, Compression: "zstd", RequiredAcks: -1}.writer()
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.Zstd, w.Compression)
	assert.Equal(t, 3, w.MaxAttempts)
	assert.Equal(t, time.Second, w.BatchTimeout)

	_, err := NewProducer(ProducerConfig{})
	assert.Error(t, err)
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer(logger.NewNop(), ConsumerConfig{})
	assert.Error(t, err)
}

func newTestConsumer(t *testing.T, h MessageHandler, dlq bool) (*Consumer, *scriptedReader, *fakeWriter) {
	t.Helper()
	cfg := ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		Retry:   retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	}
	if dlq {
		cfg.DLQTopic = "snapshots.dlq"
	}
	c, err := NewConsumer(logger.NewNop(), cfg)
	require.NoError(t, err)

	c.RegisterHandler(h)
	c.ctx = context.Background()
	w := &fakeWriter{}
	if dlq {
		c.dlq = w
	}
	return c, &scriptedReader{}, w
}

func TestConsumer_HandleRetriesThenCommits(t *testing.T) {
	calls := 0
	h := funcHandler{topic: "snapshots", fn: func([]byte) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}}
	c, reader, _ := newTestConsumer(t, h, false)

	c.handle("snapshots", reader, kafka.Message{Offset: 7, Value: []byte("{}")})

	assert.Equal(t, 2, calls)
	assert.Equal(t, []commit{{0, 7}}, reader.commits())
}

func TestConsumer_HandleFailureGoesToDLQ(t *testing.T) {
	h := funcHandler{topic: "snapshots", fn: func([]byte) error { return errors.New("bad row") }}
	c, reader, dlq := newTestConsumer(t, h, true)

	c.handle("snapshots", reader, kafka.Message{Partition: 2, Offset: 3, Value: []byte("payload")})

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "snapshots.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "payload", string(dlq.msgs[0].Value))
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
	assert.Equal(t, "2", string(dlq.msgs[0].Headers[1].Value))
	assert.Equal(t, []commit{{2, 3}}, reader.commits())
}

func TestConsumer_HandleFailureWithoutDLQIsNotCommitted(t *testing.T) {
	h := funcHandler{topic: "snapshots", fn: func([]byte) error { panic("nil row") }}
	c, reader, _ := newTestConsumer(t, h, false)

	c.handle("snapshots", reader, kafka.Message{Offset: 9})
	assert.Empty(t, reader.commits())
}

func TestConsumer_CommitsInOffsetOrderPerPartition(t *testing.T) {
	reader := &scriptedReader{records: []kafka.Message{
		{Partition: 0, Offset: 1, Value: []byte("slow")},
		{Partition: 1, Offset: 1},
		{Partition: 0, Offset: 2},
		{Partition: 1, Offset: 2},
		{Partition: 0, Offset: 3},
		{Partition: 1, Offset: 3},
	}}
	h := funcHandler{topic: "snapshots", fn: func(b []byte) error {
		if string(b) == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		return nil
	}}
	c, err := NewConsumer(logger.NewNop(), ConsumerConfig{Brokers: []string{"localhost:9092"}, Workers: 4})
	require.NoError(t, err)
	c.RegisterHandler(h)
	c.newReader = func(string) Reader { return reader }

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.commits()) == 6 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	last := map[int]int64{}
	for _, cm := range reader.commits() {
		assert.Greater(t, cm.offset, last[cm.partition], "partition %d committed out of order", cm.partition)
		last[cm.partition] = cm.offset
	}
	// the fast partition is not held back by the slow one
	assert.Equal(t, commit{1, 1}, reader.commits()[0])
}

func TestConsumer_StartStop(t *testing.T) {
	h := funcHandler{topic: "snapshots", fn: func([]byte) error { return nil }}
	c, err := NewConsumer(logger.NewNop(), ConsumerConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))

	c.RegisterHandler(h)
	c.newReader = func(string) Reader { return &scriptedReader{} }
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Stop(ctx))
}
