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

// Package hook defines the pre-transition hook contract. A hook is an
// externally invoked function consulted synchronously before a rule change
// takes effect; the engine treats it as a black box with a response
// contract only.
package hook

import (
	"context"
	"errors"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
)

var (
	// ErrRejected is returned when the hook declines the rule change.
	// Terminal for the rule in this run.
	ErrRejected = errors.New("hook rejected rule")

	// ErrTimeout is returned when the hook does not respond in time.
	// Terminal for the rule in this run; the rule is retried on the next
	// reconciliation.
	ErrTimeout = errors.New("hook invocation timed out")
)

// KeySource lazily produces the candidate object keys a rule change is
// about to affect. It is only called if the hook implementation needs
// the keys.
type KeySource func(ctx context.Context) ([]string, error)

// Hook is invoked before a rule with RequiresHook set is created or
// updated. A nil error approves the change.
type Hook interface {
	Invoke(ctx context.Context, target policy.Target, rule policy.Rule, keys KeySource) error
}
