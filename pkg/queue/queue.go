// Package queue is a Redis-backed work list with per-message retry policies,
// a scheduled retry set and a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ChainPull/pkg/retry"

	"github.com/google/uuid"
)

var (
	ErrNotRunning  = errors.New("queue not running")
	ErrUnknownKind = errors.New("no handler registered for message kind")
)

// Publisher enqueues work. A nil policy falls back to the queue's
// configured retry limit.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload interface{}, policy *retry.Policy) error
}

// Handler consumes one kind of message. Returning an error schedules a
// redelivery until the message's policy is exhausted.
type Handler interface {
	Kind() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// DepthRecorder receives sampled queue depths.
type DepthRecorder interface {
	RecordQueueDepth(pending, retrying, dead int64)
}

type Config struct {
	Workers      int
	RetryLimit   int
	RetryDelay   time.Duration
	PollInterval time.Duration // how often due retries are promoted
}

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

func (c Config) fallback() retry.Policy {
	return retry.Policy{MaxAttempts: c.RetryLimit + 1, Delay: c.RetryDelay, Factor: 1}
}

// Stats reports queue depths.
type Stats struct {
	Pending  int64
	Retrying int64
	Dead     int64
}

// Envelope is the stored form of a message. Payload is encoded once at
// publish time so every redelivery hands handlers the same bytes.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"timestamp"`
	Policy     *retry.Policy   `json:"retry,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
}

func seal(kind string, payload interface{}, policy *retry.Policy, at time.Time) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    body,
		EnqueuedAt: at,
		Policy:     policy,
	}.encode()
}

func (e Envelope) encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode message %s: %w", e.ID, err)
	}
	return string(b), nil
}

func open(raw string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Envelope{}, fmt.Errorf("decode message: %w", err)
	}
	return e, nil
}

// policy returns the redelivery policy the message was published with.
func (e Envelope) policy(c Config) retry.Policy {
	if e.Policy != nil {
		return *e.Policy
	}
	return c.fallback()
}
