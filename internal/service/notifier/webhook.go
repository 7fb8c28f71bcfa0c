// Package notifier posts operator messages to a chat webhook.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	httpclient "ChainPull/pkg/http"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/retry"
)

// maxContent is the message size accepted by Discord-style webhooks.
const maxContent = 2000

type Webhook struct {
	url    string
	http   *httpclient.Client
	policy retry.Policy
}

var _ logger.Publisher = (*Webhook)(nil)

type Option func(*Webhook)

func WithHTTPClient(hc *http.Client) Option {
	return func(w *Webhook) {
		w.http = httpclient.NewClient(httpclient.WithHTTPClient(hc))
	}
}

func New(url string, policy retry.Policy, opts ...Option) *Webhook {
	w := &Webhook{
		url:    url,
		http:   httpclient.NewClient(httpclient.WithTimeout(10 * time.Second)),
		policy: policy,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify posts content, truncated to the webhook limit. Client errors other
// than 429 are not retried.
func (w *Webhook) Notify(ctx context.Context, content string) error {
	if len(content) > maxContent {
		content = content[:maxContent-3] + "..."
	}
	body := map[string]string{"content": content}

	return w.policy.Do(ctx, func(ctx context.Context, _ int) error {
		err := w.http.Do(ctx, httpclient.Request{
			Method: http.MethodPost,
			URL:    w.url,
			JSON:   body,
		}, nil)
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	})
}

// PublishMessage renders aggregated error logs as one message.
func (w *Webhook) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	entries, ok := payload.([]logger.DigestEntry)
	if !ok {
		return w.Notify(ctx, fmt.Sprintf("**%s**\n%v", topic, payload))
	}
	return w.Notify(ctx, FormatDigest(topic, entries))
}

// FormatDigest renders entries most frequent first.
func FormatDigest(topic string, entries []logger.DigestEntry) string {
	sorted := append([]logger.DigestEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%d distinct)\n", topic, len(sorted))
	for _, e := range sorted {
		fmt.Fprintf(&b, "`%s` %s x%d", e.Level, e.Message, e.Count)
		if t, ok := e.Fields["ticker"]; ok {
			fmt.Fprintf(&b, " ticker=%v", t)
		}
		if e.Caller != "" {
			fmt.Fprintf(&b, " (%s)", e.Caller)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
