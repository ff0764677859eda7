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

// Package provider defines the boundary to the remote object store's
// lifecycle configuration API. The reconciliation engine depends only on
// this contract, never on a specific SDK.
package provider

import (
	"context"
	"errors"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
)

var (
	// ErrNotFound is returned when the target does not exist. Terminal, never retried.
	ErrNotFound = errors.New("target not found")

	// ErrPermissionDenied is returned when the caller lacks access. Terminal.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransient is returned for network and throttling failures. Retryable.
	ErrTransient = errors.New("transient provider failure")

	// ErrMalformed is returned when the provider rejects a configuration
	// as invalid. Terminal.
	ErrMalformed = errors.New("malformed lifecycle configuration")
)

// State is the lifecycle configuration as currently held by the provider.
// It may contain rules with ids unknown to the local rule set (drift).
type State struct {
	// Rules are the provider's rules mapped into the declared model.
	// Provider-added metadata that is not part of the model is dropped here
	// and carried in Raw instead.
	Rules []policy.Rule

	// Raw holds the provider-native payload for each rule, keyed by rule id.
	// Implementations that write a rule back unmodified submit this payload
	// as-is so fields outside the declared model are never stripped.
	Raw map[string]any
}

// Rule returns the mapped rule with the given id, if present.
func (s *State) Rule(id string) (policy.Rule, bool) {
	for _, r := range s.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return policy.Rule{}, false
}

// Provider is the lifecycle configuration API of a remote object store.
//
// The provider API is whole-configuration-replace, not per-rule:
// PutConfiguration submits the complete desired rule list for the target,
// and anything absent from that list stops existing. Callers assemble the
// full list, including rules they did not intend to touch, before writing.
type Provider interface {
	// GetConfiguration fetches the current lifecycle configuration.
	// A target with no configuration yields an empty State, not an error.
	GetConfiguration(ctx context.Context, target policy.Target) (*State, error)

	// PutConfiguration replaces the target's configuration with the desired
	// rules. prior, when non-nil, is the State a preceding GetConfiguration
	// returned; implementations use it to pass provider-native payloads
	// through untouched for rules that are semantically unchanged.
	// An empty desired list removes the configuration.
	PutConfiguration(ctx context.Context, target policy.Target, desired []policy.Rule, prior *State) error
}

// KeyLister samples object keys under a prefix, used to hand a pre-transition
// hook the objects a rule change is about to affect.
type KeyLister interface {
	ListKeys(ctx context.Context, target policy.Target, prefix string, max int) ([]string, error)
}

// IsTransient reports whether an error is retryable. Timeouts at the
// provider boundary count as transient per the retry policy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// IsTerminal reports whether an error must not be retried.
func IsTerminal(err error) bool {
	return err != nil && !IsTransient(err)
}

// IsNotFound reports whether the target does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
