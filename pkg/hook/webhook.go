// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lifecycle.
//
// go-lifecycle is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
)

const (
	defaultWebhookTimeout = 30 * time.Second
	defaultKeySample      = 100
)

// payload is the invocation body POSTed to the webhook endpoint.
type payload struct {
	Target string      `json:"target"`
	Rule   policy.Rule `json:"rule"`
	Keys   []string    `json:"keys,omitempty"`
}

// Webhook invokes an external HTTP endpoint (typically fronting a
// serverless handler) as the pre-transition hook. Any 2xx response
// approves the change; any other response rejects it; not answering
// within the timeout is ErrTimeout.
type Webhook struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// WebhookOption customizes a Webhook.
type WebhookOption func(*Webhook)

// WithTimeout sets the per-invocation timeout.
func WithTimeout(timeout time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = client
	}
}

// NewWebhook creates a webhook hook targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:     url,
		timeout: defaultWebhookTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		w.client = &http.Client{}
	}
	return w
}

// Invoke implements Hook.
func (w *Webhook) Invoke(ctx context.Context, target policy.Target, rule policy.Rule, keys KeySource) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	body := payload{
		Target: target.String(),
		Rule:   rule,
	}
	if keys != nil {
		sample, err := keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to list candidate keys: %w", err)
		}
		if len(sample) > defaultKeySample {
			sample = sample[:defaultKeySample]
		}
		body.Keys = sample
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal hook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: hook returned status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
