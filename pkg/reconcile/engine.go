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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-lifecycle/pkg/adapters"
	"github.com/jeremyhahn/go-lifecycle/pkg/audit"
	"github.com/jeremyhahn/go-lifecycle/pkg/hook"
	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

// ErrReconciliationInProgress is returned when a second reconciliation is
// attempted for a target that is already being reconciled by this engine.
// The lock is advisory and in-process; callers sharing targets across
// processes need their own distributed locking.
var ErrReconciliationInProgress = errors.New("reconciliation already in progress for target")

// Config wires an Engine to its collaborators.
type Config struct {
	// Provider is the lifecycle configuration API of the object store.
	Provider provider.Provider

	// Keys samples object keys for pre-transition hooks. Optional.
	Keys provider.KeyLister

	// Hook is the pre-transition hook. Optional.
	Hook hook.Hook

	// Audit receives one record per reconciliation run. Defaults to a
	// log-only sink.
	Audit audit.Logger

	// Logger receives operational diagnostics. Defaults to no-op.
	Logger adapters.Logger

	// Retry is the backoff policy for transient provider failures.
	Retry RetryConfig
}

// Options controls a single reconciliation run.
type Options struct {
	// Prune deletes drifted provider rules instead of reporting them.
	Prune bool

	// DryRun computes and reports the diff without writing anything.
	DryRun bool

	// MaxAttempts overrides the engine's retry budget when positive.
	MaxAttempts int
}

// Engine runs one fetch → diff → apply → audit pass per invocation.
// It holds no state across calls beyond the per-target advisory lock, so
// different targets may be reconciled concurrently.
type Engine struct {
	provider provider.Provider
	keys     provider.KeyLister
	hook     hook.Hook
	auditLog audit.Logger
	logger   adapters.Logger
	retry    RetryConfig
	applier  *Applier

	active sync.Map // target key -> struct{}
}

// New creates a reconciliation engine.
func New(config Config) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	auditLog := config.Audit
	if auditLog == nil {
		auditLog = audit.NewLogOnly(logger)
	}
	retry := config.Retry.withDefaults()

	return &Engine{
		provider: config.Provider,
		keys:     config.Keys,
		hook:     config.Hook,
		auditLog: auditLog,
		logger:   logger,
		retry:    retry,
		applier:  NewApplier(config.Provider, logger, retry),
	}
}

// Reconciling reports whether this engine is currently reconciling the target.
func (e *Engine) Reconciling(target policy.Target) bool {
	_, ok := e.active.Load(target.Key())
	return ok
}

// Reconcile validates the rule set, fetches current provider state,
// computes the diff and applies it, then records the outcome. The rule
// set belongs to the caller and is never retained.
//
// Validation failure aborts before any provider call and is returned as a
// *ValidationFailedError. Per-rule apply failures do not surface as an
// error here; the caller inspects Result.Failed and the outcome list.
func (e *Engine) Reconcile(ctx context.Context, target policy.Target, rules policy.RuleSet, opts Options) (*Result, error) {
	if _, loaded := e.active.LoadOrStore(target.Key(), struct{}{}); loaded {
		return nil, fmt.Errorf("%w: %s", ErrReconciliationInProgress, target)
	}
	defer e.active.Delete(target.Key())

	start := time.Now()
	runID := uuid.NewString()
	logger := e.logger.WithFields(
		adapters.Field{Key: "run_id", Value: runID},
		adapters.Field{Key: "target", Value: target.Key()},
	)

	if errs := policy.Validate(rules); len(errs) > 0 {
		return nil, &ValidationFailedError{Errors: errs}
	}

	warnings := policy.DetectConflicts(rules)
	for _, w := range warnings {
		logger.Warn(ctx, "overlapping rule prefixes", adapters.Field{Key: "detail", Value: w.Message})
	}

	retryCfg := e.retry
	if opts.MaxAttempts > 0 {
		retryCfg.MaxAttempts = opts.MaxAttempts
	}

	var state *provider.State
	attempts, err := withRetry(ctx, retryCfg, func() error {
		s, err := e.provider.GetConfiguration(ctx, target)
		if err != nil {
			return err
		}
		state = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider state: %w", err)
	}
	logger.Debug(ctx, "fetched provider state",
		adapters.Field{Key: "rules", Value: len(state.Rules)},
		adapters.Field{Key: "attempts", Value: attempts},
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diff := ComputeDiff(rules, state)
	logger.Info(ctx, "computed diff", adapters.Field{Key: "diff", Value: diff.String()})

	result := &Result{
		Target:   target,
		RunID:    runID,
		Diff:     diff,
		Warnings: warnings,
	}

	if opts.DryRun {
		result.SnapshotHash = snapshotHash(state.Rules)
		result.Duration = time.Since(start)
		return result, nil
	}

	outcomes, final, err := e.applier.Apply(ctx, target, rules, state, diff, ApplyOptions{
		Prune:       opts.Prune,
		MaxAttempts: opts.MaxAttempts,
		Hook:        e.hook,
		Keys:        e.keys,
	})
	if err != nil {
		return nil, err
	}
	result.Outcomes = outcomes
	result.SnapshotHash = snapshotHash(final)
	result.Duration = time.Since(start)

	if err := e.auditLog.Record(ctx, auditRecord(result, opts.Prune)); err != nil {
		result.AuditErr = err
		logger.Warn(ctx, "failed to record audit entry", adapters.Field{Key: "error", Value: err.Error()})
	}

	return result, nil
}

// snapshotHash hashes a configuration for audit comparison across runs.
func snapshotHash(rules []policy.Rule) string {
	data, err := json.Marshal(rules)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func auditRecord(result *Result, prune bool) *audit.Record {
	record := &audit.Record{
		RunID:  result.RunID,
		Target: result.Target.Key(),
		Prune:  prune,
		Diff: audit.DiffSummary{
			ToCreate:  result.Diff.ToCreate,
			ToUpdate:  result.Diff.ToUpdate,
			ToDelete:  result.Diff.ToDelete,
			Unchanged: result.Diff.Unchanged,
		},
		SnapshotHash: result.SnapshotHash,
		Duration:     result.Duration,
	}
	for _, o := range result.Outcomes {
		entry := audit.Outcome{
			RuleID:   o.RuleID,
			Action:   audit.Action(o.Action),
			Attempts: o.Attempts,
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		record.Outcomes = append(record.Outcomes, entry)
	}
	for _, w := range result.Warnings {
		record.Warnings = append(record.Warnings, w.Message)
	}
	return record
}
