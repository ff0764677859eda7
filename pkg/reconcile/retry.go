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

package reconcile

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

// RetryConfig controls the exponential backoff applied to transient
// provider failures.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry policy used when the caller does
// not supply one.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultRetryConfig().InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultRetryConfig().MaxBackoff
	}
	return c
}

// withRetry runs the operation until it succeeds, returns a terminal
// error, exhausts MaxAttempts, or the context is cancelled. It returns
// the number of attempts made alongside the final error.
func withRetry(ctx context.Context, config RetryConfig, operation func() error) (int, error) {
	config = config.withDefaults()

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt, lastErr
			}
			return attempt, err
		}

		err := operation()
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if !provider.IsTransient(err) {
			return attempt + 1, err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return attempt + 1, lastErr
		case <-time.After(backoffDelay(attempt, config.InitialBackoff, config.MaxBackoff)):
		}
	}

	return config.MaxAttempts, lastErr
}

// backoffDelay computes the delay before retrying a given attempt using
// exponential backoff with full jitter.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	return time.Duration(rand.Float64() * backoff) // #nosec G404 -- jitter, not security-sensitive
}
