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
	"fmt"

	"github.com/jeremyhahn/go-lifecycle/pkg/adapters"
	"github.com/jeremyhahn/go-lifecycle/pkg/hook"
	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

// keySampleSize bounds how many object keys are handed to a hook.
const keySampleSize = 100

// ApplyOptions controls a single apply pass.
type ApplyOptions struct {
	// Prune deletes drifted provider rules instead of leaving them in place.
	Prune bool

	// MaxAttempts overrides the applier's retry budget when positive.
	MaxAttempts int

	// Hook, when set, is consulted before any rule with RequiresHook is
	// created or updated.
	Hook hook.Hook

	// Keys supplies candidate object keys to the hook.
	Keys provider.KeyLister
}

// Applier executes a diff against the provider.
//
// The provider API replaces the whole configuration in one write, so the
// applier always assembles the complete desired rule list — including
// untouched rules — before writing. It must never emit a configuration
// that omits a rule the caller did not ask to remove: a dropped rule is a
// silently dropped protection.
type Applier struct {
	provider provider.Provider
	logger   adapters.Logger
	retry    RetryConfig
}

// NewApplier creates an applier on top of a provider.
func NewApplier(p provider.Provider, logger adapters.Logger, retry RetryConfig) *Applier {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Applier{provider: p, logger: logger, retry: retry.withDefaults()}
}

// Apply executes the diff. It returns the per-rule outcomes and the
// configuration the target holds once the call returns (the written rules
// on success, the prior state otherwise).
//
// Failures are per-rule: a hook rejection excludes only that rule from the
// batch, and retry exhaustion on the batch write marks the actionable
// rules Failed while unchanged rules stay untouched. The only error
// returned directly is context cancellation before the batch write, which
// leaves provider state unmodified.
func (a *Applier) Apply(ctx context.Context, target policy.Target, local policy.RuleSet,
	state *provider.State, diff Diff, opts ApplyOptions) ([]Outcome, []policy.Rule, error) {

	var outcomes []Outcome
	excluded := make(map[string]bool)
	skipped := make(map[string]bool)

	// Hook gate and idempotence check, per actionable local rule.
	for _, id := range append(append([]string{}, diff.ToCreate...), diff.ToUpdate...) {
		rule, ok := local.Rule(id)
		if !ok {
			continue
		}

		// A rule already in its desired state (stale diff from an earlier
		// partial run) is a no-op.
		if current, found := state.Rule(id); found && rule.Equivalent(current) {
			skipped[id] = true
			outcomes = append(outcomes, Outcome{RuleID: id, Action: ActionSkipped})
			continue
		}

		if rule.RequiresHook && opts.Hook != nil {
			if err := a.invokeHook(ctx, target, rule, opts); err != nil {
				a.logger.Warn(ctx, "pre-transition hook failed, excluding rule from batch",
					adapters.Field{Key: "rule_id", Value: id},
					adapters.Field{Key: "error", Value: err.Error()},
				)
				excluded[id] = true
				outcomes = append(outcomes, Outcome{
					RuleID:   id,
					Action:   ActionFailed,
					Attempts: 1,
					Err:      fmt.Errorf("pre-transition hook: %w", err),
				})
			}
		}
	}

	desired, actionable := a.merge(local, state, diff, opts.Prune, excluded, skipped)

	if len(actionable) == 0 {
		a.logger.Debug(ctx, "nothing to apply", adapters.Field{Key: "target", Value: target.Key()})
		return outcomes, state.Rules, nil
	}

	// Cancellation before the batch write is always honored cleanly.
	if err := ctx.Err(); err != nil {
		return outcomes, state.Rules, err
	}

	retryCfg := a.retry
	if opts.MaxAttempts > 0 {
		retryCfg.MaxAttempts = opts.MaxAttempts
	}

	attempts, err := withRetry(ctx, retryCfg, func() error {
		return a.provider.PutConfiguration(ctx, target, desired, state)
	})
	if err != nil {
		// One atomic write: every actionable rule fails together.
		a.logger.Error(ctx, "batch configuration write failed",
			adapters.Field{Key: "target", Value: target.Key()},
			adapters.Field{Key: "attempts", Value: attempts},
			adapters.Field{Key: "error", Value: err.Error()},
		)
		for _, act := range actionable {
			outcomes = append(outcomes, Outcome{RuleID: act.id, Action: ActionFailed, Attempts: attempts, Err: err})
		}
		return outcomes, state.Rules, nil
	}

	for _, act := range actionable {
		outcomes = append(outcomes, Outcome{RuleID: act.id, Action: act.action, Attempts: attempts})
	}
	a.logger.Info(ctx, "configuration applied",
		adapters.Field{Key: "target", Value: target.Key()},
		adapters.Field{Key: "rules", Value: len(desired)},
		adapters.Field{Key: "attempts", Value: attempts},
	)
	return outcomes, desired, nil
}

type action struct {
	id     string
	action Action
}

// merge assembles the complete desired configuration: declared rules in
// declaration order, then drifted provider rules in provider order unless
// pruned. Hook-excluded updates keep the provider's current version so the
// rule is never dropped; hook-excluded creates simply stay absent.
func (a *Applier) merge(local policy.RuleSet, state *provider.State, diff Diff,
	prune bool, excluded, skipped map[string]bool) ([]policy.Rule, []action) {

	inCreate := toSet(diff.ToCreate)
	inUpdate := toSet(diff.ToUpdate)
	declared := make(map[string]bool, len(local.Rules))

	var desired []policy.Rule
	var actionable []action

	for _, r := range local.Rules {
		declared[r.ID] = true
		switch {
		case skipped[r.ID]:
			if current, ok := state.Rule(r.ID); ok {
				desired = append(desired, current)
			} else {
				desired = append(desired, r)
			}
		case inCreate[r.ID]:
			if excluded[r.ID] {
				continue
			}
			desired = append(desired, r)
			actionable = append(actionable, action{id: r.ID, action: ActionCreated})
		case inUpdate[r.ID]:
			if excluded[r.ID] {
				if current, ok := state.Rule(r.ID); ok {
					desired = append(desired, current)
				}
				continue
			}
			desired = append(desired, r)
			actionable = append(actionable, action{id: r.ID, action: ActionUpdated})
		default:
			// Unchanged: carry the provider's version so provider-native
			// fields pass through the write untouched.
			if current, ok := state.Rule(r.ID); ok {
				desired = append(desired, current)
			} else {
				desired = append(desired, r)
			}
		}
	}

	for _, r := range state.Rules {
		if declared[r.ID] {
			continue
		}
		if prune {
			actionable = append(actionable, action{id: r.ID, action: ActionDeleted})
			continue
		}
		desired = append(desired, r)
	}

	return desired, actionable
}

func (a *Applier) invokeHook(ctx context.Context, target policy.Target, rule policy.Rule, opts ApplyOptions) error {
	var keys hook.KeySource
	if opts.Keys != nil {
		lister := opts.Keys
		keys = func(ctx context.Context) ([]string, error) {
			return lister.ListKeys(ctx, target, rule.Prefix, keySampleSize)
		}
	}
	return opts.Hook.Invoke(ctx, target, rule, keys)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
