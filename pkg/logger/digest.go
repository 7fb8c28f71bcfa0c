package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher receives flushed digests, e.g. a webhook notifier. The payload
// is a []DigestEntry.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type DigestConfig struct {
	Interval  time.Duration // flush period, 1m when unset
	Threshold int           // distinct entries that force an early flush, 50 when unset
	Topic     string
	Publisher Publisher
}

// DigestEntry is one distinct error with the number of times it was logged.
// Entries are distinct by level, message and caller; Fields are those of the
// first occurrence.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller"`
	Fields    map[string]interface{} `json:"fields"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

type digestKey struct {
	level, message, caller string
}

// Digest collapses repeated errors and publishes them from one goroutine,
// so a flood of failures becomes one message per interval.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	pending map[digestKey]*DigestEntry
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 50
	}
	d := &Digest{
		cfg:     cfg,
		pending: make(map[digestKey]*DigestEntry),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Digest) add(level, msg string, fields []Field, caller string) {
	now := time.Now()
	k := digestKey{level, msg, caller}

	d.mu.Lock()
	e, ok := d.pending[k]
	if !ok {
		e = &DigestEntry{Level: level, Message: msg, Caller: caller, FirstSeen: now}
		if len(fields) > 0 {
			e.Fields = make(map[string]interface{}, len(fields))
			for _, f := range fields {
				e.Fields[f.Key] = f.plain()
			}
		}
		d.pending[k] = e
	}
	e.Count++
	e.LastSeen = now
	full := len(d.pending) >= d.cfg.Threshold
	d.mu.Unlock()

	if full {
		select {
		case d.kick <- struct{}{}:
		default:
		}
	}
}

func (d *Digest) loop() {
	defer d.wg.Done()
	tick := time.NewTicker(d.cfg.Interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
		case <-d.kick:
		case <-d.done:
			d.flush()
			return
		}
		d.flush()
	}
}

// flush publishes pending entries, most frequent first.
func (d *Digest) flush() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, *e)
	}
	d.pending = make(map[digestKey]*DigestEntry)
	d.mu.Unlock()

	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Count > batch[j].Count })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "log digest: publish failed: %v\n", err)
	}
}

// Close publishes what is pending and stops the flush loop.
func (d *Digest) Close() {
	close(d.done)
	d.wg.Wait()
}
